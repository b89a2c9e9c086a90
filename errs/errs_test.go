package errs

import (
	"errors"
	"testing"
)

func TestProgrammerError(t *testing.T) {
	t.Parallel()

	err := NewProgrammerError("device %d does not match %d", 1, 2)
	var pe *ProgrammerError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProgrammerError, got %T", err)
	}
	if got, want := err.Error(), "programmer error: device 1 does not match 2"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestDataError(t *testing.T) {
	t.Parallel()

	t.Run("with field", func(t *testing.T) {
		t.Parallel()
		err := NewDataError("foff", "must not be zero")
		if got, want := err.Error(), "data error (foff): must not be zero"; got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	})

	t.Run("without field", func(t *testing.T) {
		t.Parallel()
		err := NewDataError("", "spectrogram is not 3-D")
		if got, want := err.Error(), "data error: spectrogram is not 3-D"; got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	})
}
