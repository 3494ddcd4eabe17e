package bundle

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/GTDGit/gtd_bundle/internal/models"
)

// Step transitions. Moves between add-on slots only change the slot index
// and never go through the machine.
const (
	eventConfirmMain     = "confirm_main"
	eventSkipAddOns      = "skip_addons"
	eventFinishAddOns    = "finish_addons"
	eventBackToMain      = "back_to_main"
	eventBackFromSummary = "back_from_summary"
	eventEditMain        = "edit_main"
	eventEditAddOn       = "edit_addon"
)

var (
	stateMain    = string(models.StepMainVariant)
	stateAddOn   = string(models.StepAddOnConfig)
	stateSummary = string(models.StepSummary)
)

// newMachine builds the step machine. onEnter is called with the destination
// step after every transition.
func newMachine(onEnter func(models.Step)) *fsm.FSM {
	return fsm.NewFSM(
		stateMain,
		fsm.Events{
			{Name: eventConfirmMain, Src: []string{stateMain}, Dst: stateAddOn},
			{Name: eventSkipAddOns, Src: []string{stateMain, stateAddOn}, Dst: stateSummary},
			{Name: eventFinishAddOns, Src: []string{stateAddOn}, Dst: stateSummary},
			{Name: eventBackToMain, Src: []string{stateAddOn}, Dst: stateMain},
			{Name: eventBackFromSummary, Src: []string{stateSummary}, Dst: stateAddOn},
			{Name: eventEditMain, Src: []string{stateSummary}, Dst: stateMain},
			{Name: eventEditAddOn, Src: []string{stateSummary}, Dst: stateAddOn},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				onEnter(models.Step(e.Dst))
			},
		},
	)
}
