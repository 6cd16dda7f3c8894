package curve_test

import (
	"fmt"

	"github.com/matzehuels/knobs/pkg/curve"
)

func ExampleCurve_linear() {
	c := curve.New(curve.DataTypeDouble)
	c.SetOrAddKeyFrame(curve.KeyFrame{Time: 0, Value: 0, Interp: curve.Linear})
	c.SetOrAddKeyFrame(curve.KeyFrame{Time: 10, Value: 5, Interp: curve.Linear})

	fmt.Println("Keys:", c.Len())
	fmt.Println("At 5:", c.ValueAt(5))
	// Output:
	// Keys: 2
	// At 5: 2.5
}

func ExampleCurve_Warp() {
	c := curve.New(curve.DataTypeDouble)
	for _, t := range []float64{1, 2, 3} {
		c.SetOrAddKeyFrame(curve.KeyFrame{Time: t, Value: t})
	}

	// 99 has no keyframe, so nothing moves.
	_, ok := c.Warp([]float64{1, 2, 99}, curve.Translate{DT: 5})
	fmt.Println("Warped:", ok, c.Times())

	_, ok = c.Warp([]float64{3}, curve.Translate{DT: 5})
	fmt.Println("Warped:", ok, c.Times())
	// Output:
	// Warped: false [1 2 3]
	// Warped: true [1 2 8]
}
