package workout

import "fmt"

// FlattenSteps expands a hierarchical step list into the flat execution
// sequence. Every REPEAT block becomes RepeatCount consecutive copies of its
// child block, each copy tagged with (iteration, total) and sharing a stable
// identity key per repeat position.
//
// A REPEAT with no children or a non-positive count contributes nothing.
// Children whose parent link does not match the preceding REPEAT are
// orphans and are skipped.
func FlattenSteps(steps []Step) []ExecutionStep {
	result := make([]ExecutionStep, 0, len(steps))

	for i := 0; i < len(steps); i++ {
		step := steps[i]

		if step.Type == StepRepeat {
			// Collect the immediately-following children of this repeat
			children := make([]Step, 0)
			j := i + 1
			for j < len(steps) && steps[j].ParentRepeatID == step.ID {
				children = append(children, steps[j])
				j++
			}
			i = j - 1

			if len(children) == 0 || step.RepeatCount <= 0 {
				continue
			}

			for iteration := 1; iteration <= step.RepeatCount; iteration++ {
				for _, child := range children {
					result = append(result, ExecutionStep{
						Step:            child,
						RepeatIteration: iteration,
						RepeatTotal:     step.RepeatCount,
						IdentityKey:     identityKey(child),
						DisplayName:     fmt.Sprintf("%s %d/%d", child.Type, iteration, step.RepeatCount),
					})
				}
			}
			continue
		}

		if step.ParentRepeatID != 0 {
			// Orphaned child - its parent repeat did not precede it
			continue
		}

		result = append(result, ExecutionStep{
			Step:        step,
			IdentityKey: identityKey(step),
			DisplayName: step.Type.String(),
		})
	}

	return result
}

// Stitch concatenates optional warmup and cooldown template sequences around
// a main sequence and returns the contiguous flat list plus the phase
// boundary counts.
func Stitch(warmup, main, cooldown []ExecutionStep) ([]ExecutionStep, PhaseCounts) {
	counts := PhaseCounts{
		Warmup:   len(warmup),
		Main:     len(main),
		Cooldown: len(cooldown),
	}
	result := make([]ExecutionStep, 0, counts.Total())
	result = append(result, warmup...)
	result = append(result, main...)
	result = append(result, cooldown...)
	return result, counts
}
