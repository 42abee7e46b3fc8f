package matchmaking

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"speakmatch/internal/models"
	"speakmatch/internal/repositories"
	"speakmatch/internal/testhelpers"
	"speakmatch/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testSecret = []byte("test-secret")

// setupTestRedis creates a miniredis instance and a redis client for testing
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

func setupMatchmaker(t *testing.T) (*Matchmaker, *gorm.DB, *redis.Client) {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	_, rdb := setupTestRedis(t)
	return NewMatchmaker(db, rdb, testSecret), db, rdb
}

func countSessions(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Session{}).Count(&n).Error)
	return n
}

func enqueueAt(t *testing.T, db *gorm.DB, userID, examID string, at time.Time) {
	t.Helper()
	entry := models.QueueEntry{UserID: userID, ExamID: examID, EnqueuedAt: at}
	require.NoError(t, db.Create(&entry).Error)
}

func TestRequestMatch_NoPartnerStaysQueued(t *testing.T) {
	mm, db, _ := setupMatchmaker(t)

	session, err := mm.RequestMatch(context.Background(), "alice", "ielts-academic")
	require.NoError(t, err)
	assert.Nil(t, session, "no partner available is a normal condition")

	var n int64
	require.NoError(t, db.Model(&models.QueueEntry{}).Count(&n).Error)
	assert.Equal(t, int64(1), n, "caller remains queued")
	assert.Equal(t, int64(0), countSessions(t, db))
}

func TestRequestMatch_OldestWaitingBecomesInterviewer(t *testing.T) {
	mm, db, _ := setupMatchmaker(t)

	// A enqueued at t0, B requests at t1 > t0.
	enqueueAt(t, db, "alice", "ielts-academic", time.Now().Add(-30*time.Second))

	session, err := mm.RequestMatch(context.Background(), "bob", "ielts-academic")
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Equal(t, "alice", session.InterviewerID, "oldest waiter opens as interviewer")
	assert.Equal(t, "bob", session.CandidateID)
	assert.Equal(t, "alice", session.CurrentInterviewerID)
	assert.Equal(t, models.SessionCreated, session.State)
	assert.Equal(t, int64(1), countSessions(t, db))

	// Both queue rows consumed by the pairing transaction.
	var n int64
	require.NoError(t, db.Model(&models.QueueEntry{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}

func TestRequestMatch_DifferentExamsNeverPair(t *testing.T) {
	mm, db, _ := setupMatchmaker(t)

	enqueueAt(t, db, "alice", "ielts-academic", time.Now().Add(-time.Second))

	session, err := mm.RequestMatch(context.Background(), "bob", "toefl")
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, int64(0), countSessions(t, db))
}

func TestRequestMatch_AlreadyInActiveSession(t *testing.T) {
	mm, db, _ := setupMatchmaker(t)

	sessions := &repositories.SessionRepository{DB: db}
	require.NoError(t, sessions.Create(&models.Session{
		ID: "s1", InterviewerID: "alice", CandidateID: "bob", ExamID: "ielts-academic",
	}))

	_, err := mm.RequestMatch(context.Background(), "alice", "ielts-academic")
	assert.ErrorIs(t, err, ErrAlreadyInSession)

	// After the session ends the user may queue again.
	require.NoError(t, sessions.End("s1"))
	session, err := mm.RequestMatch(context.Background(), "alice", "ielts-academic")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestTryPair_SecondAttemptObservesZeroRowDeleteAndAborts(t *testing.T) {
	mm, db, _ := setupMatchmaker(t)

	enqueueAt(t, db, "alice", "ielts-academic", time.Now().Add(-2*time.Second))
	enqueueAt(t, db, "bob", "ielts-academic", time.Now().Add(-time.Second))

	// Side A wins the race: its transaction consumes both rows.
	first, err := mm.TryPair(context.Background(), "alice", "ielts-academic")
	require.NoError(t, err)
	require.NotNil(t, first)

	// Side B's attempt against the same pair of rows now sees zero rows
	// affected and must abort without creating a second session.
	second, err := mm.TryPair(context.Background(), "bob", "ielts-academic")
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Equal(t, int64(1), countSessions(t, db), "exactly one session for the pair")
}

func TestTryPair_ConcurrentAttemptsCreateExactlyOneSession(t *testing.T) {
	mm, db, _ := setupMatchmaker(t)

	// One connection serializes sqlite while both goroutines race through
	// the peek-claim-create sequence.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	enqueueAt(t, db, "alice", "ielts-academic", time.Now().Add(-2*time.Second))
	enqueueAt(t, db, "bob", "ielts-academic", time.Now().Add(-time.Second))

	type attempt struct {
		session *models.Session
		err     error
	}
	results := make(chan attempt, 2)
	var wg sync.WaitGroup
	for _, userID := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			session, err := mm.TryPair(context.Background(), id, "ielts-academic")
			results <- attempt{session, err}
		}(userID)
	}
	wg.Wait()
	close(results)

	created := 0
	for res := range results {
		require.NoError(t, res.err, "the losing side aborts, it does not error")
		if res.session != nil {
			created++
			assert.Equal(t, "alice", res.session.InterviewerID, "oldest waiter opens as interviewer")
		}
	}
	assert.Equal(t, 1, created, "exactly one side wins the claim")
	assert.Equal(t, int64(1), countSessions(t, db))

	var n int64
	require.NoError(t, db.Model(&models.QueueEntry{}).Count(&n).Error)
	assert.Equal(t, int64(0), n, "both queue rows consumed by the winning transaction")
}

func TestTryPair_OwnRowClaimedByOtherSideAborts(t *testing.T) {
	mm, db, _ := setupMatchmaker(t)

	enqueueAt(t, db, "alice", "ielts-academic", time.Now().Add(-2*time.Second))
	enqueueAt(t, db, "bob", "ielts-academic", time.Now().Add(-time.Second))

	// Simulate the other side consuming alice's row mid-flight.
	queues := &repositories.QueueRepository{DB: db}
	claimed, err := queues.Dequeue("alice")
	require.NoError(t, err)
	require.True(t, claimed)

	session, err := mm.TryPair(context.Background(), "alice", "ielts-academic")
	require.NoError(t, err)
	assert.Nil(t, session, "a client whose own entry is gone must not create a session")
	assert.Equal(t, int64(0), countSessions(t, db))

	// Bob's row was not consumed by the aborted attempt.
	_, err = queues.Get("bob")
	assert.NoError(t, err)
}

func TestRequestMatch_PublishesNotificationsToBothUsers(t *testing.T) {
	mm, db, rdb := setupMatchmaker(t)

	ctx := context.Background()
	subAlice := rdb.Subscribe(ctx, "match:alice")
	t.Cleanup(func() { subAlice.Close() })
	subBob := rdb.Subscribe(ctx, "match:bob")
	t.Cleanup(func() { subBob.Close() })

	// Make sure the subscriptions are established before publishing.
	_, err := subAlice.Receive(ctx)
	require.NoError(t, err)
	_, err = subBob.Receive(ctx)
	require.NoError(t, err)

	enqueueAt(t, db, "alice", "ielts-academic", time.Now().Add(-time.Second))
	session, err := mm.RequestMatch(ctx, "bob", "ielts-academic")
	require.NoError(t, err)
	require.NotNil(t, session)

	expectRole := map[string]string{"alice": models.RoleInterviewer, "bob": models.RoleCandidate}
	for userID, sub := range map[string]*redis.PubSub{"alice": subAlice, "bob": subBob} {
		select {
		case msg := <-sub.Channel():
			var notification models.MatchNotification
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &notification))
			assert.Equal(t, "match_found", notification.Type)
			assert.Equal(t, session.ID, notification.SessionID)
			assert.Equal(t, expectRole[userID], notification.Role)

			gotUser, err := utils.VerifySessionToken(notification.Token, session.ID, testSecret)
			require.NoError(t, err)
			assert.Equal(t, userID, gotUser)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s's match notification", userID)
		}
	}
}

func TestCancel(t *testing.T) {
	mm, db, _ := setupMatchmaker(t)

	enqueueAt(t, db, "alice", "ielts-academic", time.Now())

	removed, err := mm.Cancel(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = mm.Cancel(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, removed, "second cancel finds nothing to remove")
}

func TestCheckFor(t *testing.T) {
	mm, db, _ := setupMatchmaker(t)

	t.Run("not matched", func(t *testing.T) {
		check, err := mm.CheckFor("alice")
		require.NoError(t, err)
		assert.False(t, check.Matched)
	})

	t.Run("matched", func(t *testing.T) {
		enqueueAt(t, db, "alice", "ielts-academic", time.Now().Add(-time.Second))
		session, err := mm.RequestMatch(context.Background(), "bob", "ielts-academic")
		require.NoError(t, err)
		require.NotNil(t, session)

		check, err := mm.CheckFor("alice")
		require.NoError(t, err)
		assert.True(t, check.Matched)
		assert.Equal(t, session.ID, check.SessionID)
		assert.Equal(t, models.RoleInterviewer, check.Role)

		gotUser, err := utils.VerifySessionToken(check.Token, session.ID, testSecret)
		require.NoError(t, err)
		assert.Equal(t, "alice", gotUser)
	})
}

func TestStartStaleSweep_Disabled(t *testing.T) {
	mm, _, _ := setupMatchmaker(t)

	done := make(chan struct{})
	go func() {
		mm.StartStaleSweep(context.Background(), 0, time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep with zero ttl should return immediately")
	}
}

func TestStartStaleSweep_EvictsOldEntries(t *testing.T) {
	mm, db, _ := setupMatchmaker(t)

	enqueueAt(t, db, "alice", "ielts-academic", time.Now().Add(-time.Hour))
	enqueueAt(t, db, "bob", "ielts-academic", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	go mm.StartStaleSweep(ctx, 30*time.Minute, 10*time.Millisecond)

	queues := &repositories.QueueRepository{DB: db}
	assert.Eventually(t, func() bool {
		_, err := queues.Get("alice")
		return err == repositories.ErrNoPartner
	}, 2*time.Second, 20*time.Millisecond, "stale entry should be evicted")
	cancel()

	_, err := queues.Get("bob")
	assert.NoError(t, err, "fresh entry survives the sweep")
}
