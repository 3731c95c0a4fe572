package orders

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition_Table(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusProcessing}:   true,
		{StatusPending, StatusCancelled}:    true,
		{StatusProcessing, StatusShipping}:  true,
		{StatusProcessing, StatusCancelled}: true,
		{StatusShipping, StatusDelivered}:   true,
	}

	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := allowed[[2]Status{from, to}]
			assert.Equalf(t, want, CanTransition(from, to), "%s -> %s", from, to)

			err := AssertTransition(from, to)
			if want {
				assert.NoErrorf(t, err, "%s -> %s", from, to)
				continue
			}
			var te *InvalidTransitionError
			require.ErrorAsf(t, err, &te, "%s -> %s", from, to)
			assert.Equal(t, from, te.From)
			assert.Equal(t, to, te.To)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	}
}

func TestCanTransition_UnknownStatus(t *testing.T) {
	assert.False(t, CanTransition("SHIPPED", StatusDelivered))
	assert.False(t, CanTransition(StatusPending, "COMPLETED"))
}

func TestAssertCancellable(t *testing.T) {
	assert.NoError(t, AssertCancellable(StatusPending))

	for _, s := range []Status{StatusProcessing, StatusShipping, StatusDelivered, StatusCancelled} {
		err := AssertCancellable(s)
		assert.Truef(t, errors.Is(err, ErrCannotCancel), "status %s", s)
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusShipping.Terminal())
	assert.False(t, Status("UNKNOWN").Terminal())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("  shipping ")
	require.NoError(t, err)
	assert.Equal(t, StatusShipping, s)

	_, err = ParseStatus("SHIPPED")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = ParseStatus("")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
