package expr_test

import (
	"fmt"

	"github.com/matzehuels/knobs/pkg/expr"
)

func ExampleInterpreter_Compile() {
	p, err := expr.NewInterpreter().Compile(`value("size", 0) * frame`, false, expr.KindNumber)
	if err != nil {
		fmt.Println(err)
		return
	}
	res, _ := p.Eval(expr.Env{
		Frame: 4,
		Value: func(ref string, dim int) (float64, error) { return 1.5, nil },
	})
	fmt.Println(res.Number, res.Deps)
	// Output: 6 [size[0]]
}
