package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerEvaluatePass Trigger = "EVALUATE_PASS"
	TriggerEvaluateFlag Trigger = "EVALUATE_FLAG"
	TriggerPropose      Trigger = "PROPOSE"
	TriggerSubmit       Trigger = "SUBMIT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
