package client

import (
	"context"
	"errors"
	"sync"

	"github.com/coverbridge/ichra-enrollment/app/dto"
	"github.com/shopspring/decimal"
)

// WizardStep identifies a position in the enrollment wizard.
type WizardStep int

const (
	StepBusinessInfo WizardStep = iota + 1
	StepPlanSelection
	StepEmployeeClasses
	StepReview
)

// Wizard sequencing errors
var (
	ErrStepNotReady    = errors.New("prerequisite step has not completed")
	ErrWrongStep       = errors.New("operation does not match the current step")
	ErrWizardCompleted = errors.New("wizard already completed")
)

// Draft accumulates the wizard's collected state. Identifiers returned
// by completed steps gate forward navigation; going back never clears
// collected data.
type Draft struct {
	Registration dto.BusinessRegistrationRequest

	BusinessID uint
	UserID     uint

	PlanID        uint
	EffectiveDate dto.Date
	MonthlyBudget decimal.Decimal

	EnrollmentID    uint
	EmployeeClasses []dto.EmployeeClassRequest

	AdditionalNotes string
	Completed       bool
}

// Wizard sequences the four enrollment steps against an EnrollmentAPI.
// Completing a step merges the server's response into the draft and
// advances the step pointer as one atomic operation, so a slow or
// failed request can never advance the wizard on stale data.
type Wizard struct {
	mu    sync.Mutex
	api   EnrollmentAPI
	step  WizardStep
	draft Draft
}

// NewWizard creates a wizard positioned at the business info step.
func NewWizard(api EnrollmentAPI) *Wizard {
	return &Wizard{
		api:  api,
		step: StepBusinessInfo,
	}
}

// Step returns the current wizard step.
func (w *Wizard) Step() WizardStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Draft returns a copy of the collected state.
func (w *Wizard) Draft() Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := w.draft
	d.EmployeeClasses = append([]dto.EmployeeClassRequest(nil), w.draft.EmployeeClasses...)
	return d
}

// Back moves one step backward. Collected data is retained so the user
// can revise and resubmit.
func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step > StepBusinessInfo {
		w.step--
	}
}

// SetEffectiveDate stores the effective date on the draft without
// advancing; it is submitted with the plan selection step.
func (w *Wizard) SetEffectiveDate(d dto.Date) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.EffectiveDate = d
}

// SetAdditionalNotes stores review notes on the draft without advancing.
func (w *Wizard) SetAdditionalNotes(notes string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.AdditionalNotes = notes
}

// CompleteBusinessInfo submits step 1 and advances to plan selection.
func (w *Wizard) CompleteBusinessInfo(ctx context.Context, req dto.BusinessRegistrationRequest) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.draft.Completed {
		return ErrWizardCompleted
	}
	if w.step != StepBusinessInfo {
		return ErrWrongStep
	}

	resp, err := w.api.RegisterBusiness(ctx, &req)
	if err != nil {
		return err
	}

	w.draft.Registration = req
	w.draft.BusinessID = resp.BusinessID
	w.draft.UserID = resp.UserID
	w.step = StepPlanSelection
	return nil
}

// CompletePlanSelection submits step 2 and advances to employee
// classes. Requires the business id produced by step 1.
func (w *Wizard) CompletePlanSelection(ctx context.Context, planID uint, monthlyBudget decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.draft.Completed {
		return ErrWizardCompleted
	}
	if w.step != StepPlanSelection {
		return ErrWrongStep
	}
	if w.draft.BusinessID == 0 {
		return ErrStepNotReady
	}

	req := dto.PlanSelectionRequest{
		PlanID:        planID,
		EffectiveDate: w.draft.EffectiveDate,
		MonthlyBudget: monthlyBudget,
	}
	resp, err := w.api.SelectPlan(ctx, w.draft.BusinessID, &req)
	if err != nil {
		return err
	}

	w.draft.PlanID = planID
	w.draft.MonthlyBudget = monthlyBudget
	w.draft.EnrollmentID = resp.EnrollmentID
	w.step = StepEmployeeClasses
	return nil
}

// CompleteEmployeeClasses submits step 3 and advances to review.
// Requires the enrollment id produced by step 2. Resubmitting from a
// later backward navigation replaces the stored class list.
func (w *Wizard) CompleteEmployeeClasses(ctx context.Context, classes []dto.EmployeeClassRequest) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.draft.Completed {
		return ErrWizardCompleted
	}
	if w.step != StepEmployeeClasses {
		return ErrWrongStep
	}
	if w.draft.EnrollmentID == 0 {
		return ErrStepNotReady
	}
	if len(classes) == 0 {
		return ErrStepNotReady
	}

	req := dto.EmployeeClassesRequest{EmployeeClasses: classes}
	if _, err := w.api.DefineClasses(ctx, w.draft.EnrollmentID, &req); err != nil {
		return err
	}

	w.draft.EmployeeClasses = append([]dto.EmployeeClassRequest(nil), classes...)
	w.step = StepReview
	return nil
}

// CompleteReview submits the final step and marks the wizard done.
// Requires a non-empty class list.
func (w *Wizard) CompleteReview(ctx context.Context, notes string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.draft.Completed {
		return ErrWizardCompleted
	}
	if w.step != StepReview {
		return ErrWrongStep
	}
	if len(w.draft.EmployeeClasses) == 0 {
		return ErrStepNotReady
	}

	req := dto.FinalizeEnrollmentRequest{AdditionalNotes: notes}
	if _, err := w.api.FinalizeEnrollment(ctx, w.draft.EnrollmentID, &req); err != nil {
		return err
	}

	w.draft.AdditionalNotes = notes
	w.draft.Completed = true
	return nil
}
