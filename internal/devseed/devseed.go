// Package devseed loads demo election data for local development. The service
// never writes cipher items in production; the casting pipeline owns them.
package devseed

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quorumworks/tallyd/internal/data"
	"github.com/quorumworks/tallyd/internal/domain/model"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB    *sql.DB
	items *data.CipherItemRepo
}

// NewServices constructs the repositories used for seeding against the provided DB.
func NewServices(db *sql.DB) Services {
	return Services{
		DB:    db,
		items: &data.CipherItemRepo{DB: db},
	}
}

// Run executes the development seeding workflow against the provided DB.
// Seeding is idempotent per election: elections that already hold cipher
// items are left untouched.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	failures := 0
	for _, spec := range defaultElectionSeedSpecs() {
		if err := seedElection(ctx, svcs.items, spec, logger); err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed election",
					"election_id", spec.electionID, "error", err)
			}
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

// electionSeedSpec describes one demo election's ballot box.
type electionSeedSpec struct {
	electionID string
	ballots    int
	castWindow time.Duration
}

// defaultElectionSeedSpecs returns the demo elections loaded for local runs.
// The general election spans multiple chunks at the default chunk size; the
// municipal one finishes in a single chunk for quick smoke runs.
func defaultElectionSeedSpecs() []electionSeedSpec {
	return []electionSeedSpec{
		{
			electionID: "demo-general-2026",
			ballots:    2500,
			castWindow: 12 * time.Hour,
		},
		{
			electionID: "demo-municipal-2026",
			ballots:    120,
			castWindow: 2 * time.Hour,
		},
	}
}

func seedElection(
	ctx context.Context,
	items *data.CipherItemRepo,
	spec electionSeedSpec,
	logger *slog.Logger,
) error {
	existing, err := items.Count(ctx, spec.electionID)
	if err != nil {
		return fmt.Errorf("count cipher items: %w", err)
	}
	if existing > 0 {
		if logger != nil {
			logger.InfoContext(ctx, "election already seeded",
				"election_id", spec.electionID, "cipher_items", existing)
		}
		return nil
	}

	inserted, err := items.BulkInsert(ctx, buildDemoBallots(spec))
	if err != nil {
		return fmt.Errorf("bulk insert cipher items: %w", err)
	}

	if logger != nil {
		logger.InfoContext(ctx, "seeded election",
			"election_id", spec.electionID, "cipher_items", inserted)
	}
	return nil
}

// buildDemoBallots fabricates the election's ballot box. Ballot ids are
// deterministic so a reset-and-reseed cycle produces the same rows, and
// cast_at timestamps spread across the cast window so the partition order
// is non-trivial.
func buildDemoBallots(spec electionSeedSpec) []*model.CipherItem {
	castBase := time.Now().UTC().Add(-spec.castWindow)
	step := spec.castWindow / time.Duration(max(spec.ballots, 1))

	ballots := make([]*model.CipherItem, 0, spec.ballots)
	for i := 0; i < spec.ballots; i++ {
		id := uuid.NewSHA1(uuid.NameSpaceOID,
			fmt.Appendf(nil, "%s/ballot/%d", spec.electionID, i)).String()

		ballots = append(ballots, &model.CipherItem{
			ID:         id,
			ElectionID: spec.electionID,
			Ciphertext: demoCiphertext(spec.electionID, i),
			CastAt:     castBase.Add(time.Duration(i) * step),
		})
	}
	return ballots
}

// demoCiphertext renders the pad/data pair shape real ballots carry. The
// values are digests, not encryptions; the orchestration layer treats
// ciphertexts as opaque either way.
func demoCiphertext(electionID string, ordinal int) json.RawMessage {
	pad := sha256.Sum256(fmt.Appendf(nil, "%s/pad/%d", electionID, ordinal))
	payload := sha256.Sum256(fmt.Appendf(nil, "%s/data/%d", electionID, ordinal))

	return json.RawMessage(fmt.Sprintf(`{"pad": %q, "data": %q}`,
		hex.EncodeToString(pad[:]), hex.EncodeToString(payload[:])))
}
