package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// The status machine lives in the SQL guards; pin them so a careless
// edit cannot silently widen a transition.

func TestDeliveryQueriesGuardStatusTransitions(t *testing.T) {
	// Only failed rows may be re-pended by an explicit retry; a sent
	// row re-pended would be delivered again.
	require.Contains(t, qDeliveryRequeue, "status = 'failed'")

	// Outcome updates apply only while the row is still pending, so a
	// single invocation owns each outcome.
	require.Contains(t, qDeliveryMarkSent, "AND status = 'pending'")
	require.Contains(t, qDeliveryMarkFailed, "AND status = 'pending'")
}

func TestDeliveryPickClaimsRows(t *testing.T) {
	// The pick is the claim: row locks held for the batch transaction,
	// concurrent drains skip rather than double-send.
	require.Contains(t, qDeliveryPick, "FOR UPDATE OF d SKIP LOCKED")
	require.Contains(t, qDeliveryPick, "ORDER BY d.id")
	require.Contains(t, qDeliveryPick, "d.status = 'pending'")
}
