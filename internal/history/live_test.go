package history

import (
	"os"
	"testing"
)

// TestLiveDatabase opens the backend database named by REVIEW_DB_PATH and
// reads one user's evaluations. Skipped if the database doesn't exist.
func TestLiveDatabase(t *testing.T) {
	dbPath := os.Getenv("REVIEW_DB_PATH")
	if dbPath == "" {
		t.Skip("REVIEW_DB_PATH not set")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Skip("database not found at", dbPath)
	}

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	userID := os.Getenv("REVIEW_USER_ID")
	evals, err := store.ResultsForUser(userID)
	if err != nil {
		t.Fatalf("ResultsForUser: %v", err)
	}
	t.Logf("%d evaluations for %q", len(evals), userID)
	for _, ev := range evals {
		t.Logf("  %s %v %s", ev.Date.Format("2006-01-02"), ev.Summary.Scores, ev.Summary.Summary)
	}
}
