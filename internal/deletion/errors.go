package deletion

import "fmt"

// NoSuchResourceError is raised when neither a process nor a DRG exists at
// the requested key.
type NoSuchResourceError struct {
	ResourceKey int64
}

func (e *NoSuchResourceError) Error() string {
	return fmt.Sprintf("Expected to delete resource but no resource found with key `%d`", e.ResourceKey)
}

// ActiveProcessInstancesError is raised when a process cannot be removed
// because instances of it are still running.
type ActiveProcessInstancesError struct {
	ProcessKey int64
}

func (e *ActiveProcessInstancesError) Error() string {
	return fmt.Sprintf("Expected to delete resource with key `%d` but there are still running instances", e.ProcessKey)
}

// ErrorClass is what Processor Dispatch needs to decide whether a command
// can advance past a failure or must halt the partition.
type ErrorClass int

const (
	ExpectedError ErrorClass = iota
	UnexpectedError
)

// Classify maps an error raised during classify-and-delete to the
// dispatch-level error class. Only the two well-known rejections are
// expected; everything else (codec errors, missing-primary, foreign key
// violations, or anything unforeseen) is unexpected and fatal.
func Classify(err error) ErrorClass {
	switch err.(type) {
	case *NoSuchResourceError, *ActiveProcessInstancesError:
		return ExpectedError
	default:
		return UnexpectedError
	}
}
