// Package curve provides the keyframe engine behind animated parameters.
//
// # Overview
//
// A [Curve] is an ordered, unique-by-time list of [KeyFrame] values for one
// (dimension, view) slot of a parameter. Each keyframe carries an
// [Interpolation] that decides how the segment leaving it is evaluated.
// Values between keyframes are computed with cubic Hermite interpolation
// using per-key left/right derivatives, which are derived automatically for
// every interpolation except [Free] and [Broken].
//
// # Data types
//
// A curve is created for one [DataType]:
//   - [DataTypeDouble]: full interpolation
//   - [DataTypeInt]: full interpolation, results rounded to integers
//   - [DataTypeBool]: constant interpolation, values are 0 or 1
//   - [DataTypeString]: constant interpolation, values are ordinals into a
//     [StringAnimation] table
//
// # Mutations
//
//	c := curve.New(curve.DataTypeDouble)
//	c.SetOrAddKeyFrame(curve.KeyFrame{Time: 0, Value: 0, Interp: curve.Linear})
//	c.SetOrAddKeyFrame(curve.KeyFrame{Time: 10, Value: 5, Interp: curve.Linear})
//	c.ValueAt(5) // 2.5
//
// [Curve.SetOrAddKeyFrame] reports [KeyAdded], [KeyReplaced] or [KeyNoChange]
// so callers can skip change notification when nothing differs.
// [Curve.RemoveKeyFrames] is best effort: times without a keyframe are
// ignored. [Curve.Warp] is all-or-nothing: if any requested time has no
// keyframe, or the warped times would collide, no keyframe is touched.
//
// # Concurrency
//
// Curve is safe for concurrent use. Operations involving two curves
// ([Curve.CloneFrom]) lock them in a fixed global order.
package curve
