package services

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"git.solsynth.dev/hypernet/polls/pkg/internal/models"
	"git.solsynth.dev/hypernet/polls/pkg/internal/testutil"
	"gorm.io/gorm"
)

func anonymous(token string) Participant {
	return ResolveParticipant(ParticipantContext{
		RemoteAddr: "10.0.0.1",
		UserAgent:  "Mozilla/5.0",
		Token:      token,
	})
}

func submit(poll models.Poll, optionID uint, participant Participant, now time.Time) (models.Submission, error) {
	return SubmitToPoll(SubmissionRequest{
		PollRef:     strconv.FormatUint(uint64(poll.ID), 10),
		OptionID:    optionID,
		Participant: participant,
		Now:         now,
	})
}

func assertCounters(t *testing.T, pollID uint, total int64, byPosition ...int64) {
	t.Helper()

	poll := testutil.ReloadPoll(t, pollID)
	if poll.TotalSubmissions != total {
		t.Errorf("Expected poll total %d, got %d", total, poll.TotalSubmissions)
	}
	if rows := testutil.CountSubmissions(t, pollID); rows != total {
		t.Errorf("Expected %d submission rows, got %d", total, rows)
	}
	for idx, want := range byPosition {
		if got := poll.Options[idx].SubmissionCount; got != want {
			t.Errorf("Expected option %d count %d, got %d", idx+1, want, got)
		}
	}
}

func TestSubmitToPollAccepts(t *testing.T) {
	testutil.SetupTestDB(t)

	poll := testutil.CreateTestPoll(t, time.Now().Add(7*24*time.Hour), nil)

	submission, err := submit(poll, poll.Options[1].ID, anonymous("first"), time.Now())
	if err != nil {
		t.Fatalf("SubmitToPoll() error = %v", err)
	}
	if submission.ID == 0 || submission.PollID != poll.ID || submission.OptionID != poll.Options[1].ID {
		t.Errorf("Unexpected submission %+v", submission)
	}

	assertCounters(t, poll.ID, 1, 0, 1, 0, 0)
}

func TestSubmitToPollByAccessCode(t *testing.T) {
	testutil.SetupTestDB(t)

	poll := testutil.CreateTestPoll(t, time.Now().Add(time.Hour), nil)

	_, err := SubmitToPoll(SubmissionRequest{
		PollRef:     poll.AccessCode,
		OptionID:    poll.Options[0].ID,
		Participant: anonymous("code"),
		Now:         time.Now(),
	})
	if err != nil {
		t.Fatalf("SubmitToPoll() error = %v", err)
	}

	assertCounters(t, poll.ID, 1, 1)
}

func TestSubmitToPollRejectsDuplicate(t *testing.T) {
	testutil.SetupTestDB(t)

	poll := testutil.CreateTestPoll(t, time.Now().Add(7*24*time.Hour), nil)
	participant := anonymous("same")

	if _, err := submit(poll, poll.Options[0].ID, participant, time.Now()); err != nil {
		t.Fatalf("First submission error = %v", err)
	}

	// A different option does not help either.
	_, err := submit(poll, poll.Options[2].ID, participant, time.Now())
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("Expected ErrDuplicateSubmission, got %v", err)
	}

	assertCounters(t, poll.ID, 1, 1, 0, 0, 0)
}

func TestSubmitToPollRejectsClosed(t *testing.T) {
	testutil.SetupTestDB(t)

	expired := testutil.CreateTestPoll(t, time.Now().Add(-24*time.Hour), nil)
	_, err := submit(expired, expired.Options[0].ID, anonymous("late"), time.Now())
	if !errors.Is(err, ErrPollClosed) {
		t.Errorf("Expected ErrPollClosed for expired poll, got %v", err)
	}
	assertCounters(t, expired.ID, 0, 0, 0, 0, 0)

	closed := testutil.CreateTestPoll(t, time.Now().Add(24*time.Hour), nil)
	if _, err := ClosePoll(closed, time.Now()); err != nil {
		t.Fatalf("ClosePoll() error = %v", err)
	}
	_, err = submit(closed, closed.Options[0].ID, anonymous("late"), time.Now())
	if !errors.Is(err, ErrPollClosed) {
		t.Errorf("Expected ErrPollClosed for closed poll, got %v", err)
	}
	assertCounters(t, closed.ID, 0, 0, 0, 0, 0)
}

func TestSubmitToPollDeadlineBoundary(t *testing.T) {
	testutil.SetupTestDB(t)

	deadline := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	poll := testutil.CreateTestPoll(t, deadline, nil)

	_, err := submit(poll, poll.Options[0].ID, anonymous("on-time"), deadline)
	if !errors.Is(err, ErrPollClosed) {
		t.Errorf("Expected submission at the deadline to be rejected, got %v", err)
	}

	if _, err := submit(poll, poll.Options[0].ID, anonymous("just-before"), deadline.Add(-time.Millisecond)); err != nil {
		t.Errorf("Expected submission just before the deadline to pass, got %v", err)
	}
}

func TestSubmitToPollRejectsForeignOption(t *testing.T) {
	testutil.SetupTestDB(t)

	poll := testutil.CreateTestPoll(t, time.Now().Add(time.Hour), nil)
	other := testutil.CreateTestPoll(t, time.Now().Add(time.Hour), nil)

	_, err := submit(poll, other.Options[0].ID, anonymous("lost"), time.Now())
	if !errors.Is(err, ErrInvalidOption) {
		t.Errorf("Expected ErrInvalidOption, got %v", err)
	}

	_, err = submit(poll, 0, anonymous("lost"), time.Now())
	if !errors.Is(err, ErrInvalidOption) {
		t.Errorf("Expected ErrInvalidOption for missing option, got %v", err)
	}

	assertCounters(t, poll.ID, 0, 0, 0, 0, 0)
	assertCounters(t, other.ID, 0, 0, 0, 0, 0)
}

func TestSubmitToPollRejectsUnknownPoll(t *testing.T) {
	testutil.SetupTestDB(t)

	_, err := SubmitToPoll(SubmissionRequest{
		PollRef:     "404",
		OptionID:    1,
		Participant: anonymous("nobody"),
		Now:         time.Now(),
	})
	if !errors.Is(err, ErrPollNotFound) {
		t.Errorf("Expected ErrPollNotFound, got %v", err)
	}
}

func TestSubmitToPollRejectsOwner(t *testing.T) {
	testutil.SetupTestDB(t)

	owner := testutil.CreateTestAccount(t, "owner@example.com")
	poll := testutil.CreateTestPoll(t, time.Now().Add(time.Hour), &owner.ID)

	_, err := submit(poll, poll.Options[0].ID, ResolveParticipant(ParticipantContext{AccountID: &owner.ID}), time.Now())
	if !errors.Is(err, ErrSelfSubmissionForbidden) {
		t.Errorf("Expected ErrSelfSubmissionForbidden, got %v", err)
	}

	guest := testutil.CreateTestAccount(t, "guest@example.com")
	submission, err := submit(poll, poll.Options[0].ID, ResolveParticipant(ParticipantContext{AccountID: &guest.ID}), time.Now())
	if err != nil {
		t.Fatalf("Expected another account to submit, got %v", err)
	}
	if submission.AccountID == nil || *submission.AccountID != guest.ID {
		t.Errorf("Expected submission to be linked to account %d", guest.ID)
	}

	assertCounters(t, poll.ID, 1, 1)
}

func TestSubmitToPollDistinctParticipants(t *testing.T) {
	testutil.SetupTestDB(t)

	poll := testutil.CreateTestPoll(t, time.Now().Add(time.Hour), nil)
	alice := anonymous("alice")
	bob := anonymous("bob")

	for _, participant := range []Participant{alice, bob} {
		if _, err := submit(poll, poll.Options[3].ID, participant, time.Now()); err != nil {
			t.Fatalf("SubmitToPoll() error = %v", err)
		}
	}

	assertCounters(t, poll.ID, 2, 0, 0, 0, 2)
	for _, participant := range []Participant{alice, bob} {
		if ok, err := HasParticipantSubmitted(poll, participant); err != nil || !ok {
			t.Errorf("Expected participant to have one submission, got %v (%v)", ok, err)
		}
	}
}

func TestSubmitToPollConcurrentDuplicates(t *testing.T) {
	testutil.SetupTestDB(t)

	poll := testutil.CreateTestPoll(t, time.Now().Add(time.Hour), nil)
	participant := anonymous("racer")

	const attempts = 16
	var wg sync.WaitGroup
	var accepted, duplicated, failed atomic.Int64

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(option uint) {
			defer wg.Done()
			_, err := submit(poll, option, participant, time.Now())
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, ErrDuplicateSubmission):
				duplicated.Add(1)
			default:
				failed.Add(1)
			}
		}(poll.Options[i%len(poll.Options)].ID)
	}
	wg.Wait()

	if accepted.Load() != 1 {
		t.Errorf("Expected exactly 1 accepted submission, got %d", accepted.Load())
	}
	if duplicated.Load() != attempts-1 {
		t.Errorf("Expected %d duplicates, got %d (other failures: %d)", attempts-1, duplicated.Load(), failed.Load())
	}

	assertCounters(t, poll.ID, 1)
}

func TestSubmitToPollConcurrentParticipants(t *testing.T) {
	testutil.SetupTestDB(t)

	poll := testutil.CreateTestPoll(t, time.Now().Add(time.Hour), nil)

	const participants = 12
	var wg sync.WaitGroup
	var accepted atomic.Int64

	for i := 0; i < participants; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			option := poll.Options[idx%len(poll.Options)].ID
			if _, err := submit(poll, option, anonymous(fmt.Sprintf("participant-%d", idx)), time.Now()); err != nil {
				t.Errorf("Participant %d was rejected: %v", idx, err)
				return
			}
			accepted.Add(1)
		}(i)
	}
	wg.Wait()

	if accepted.Load() != participants {
		t.Fatalf("Expected %d accepted submissions, got %d", participants, accepted.Load())
	}

	assertCounters(t, poll.ID, participants, 3, 3, 3, 3)

	metric, err := GetPollMetric(testutil.ReloadPoll(t, poll.ID))
	if err != nil {
		t.Fatalf("GetPollMetric() error = %v", err)
	}
	var sum int64
	for _, option := range metric.ByOptions {
		sum += option.Count
		if option.Percentage != 25 {
			t.Errorf("Expected 25%% for option %d, got %v", option.OptionID, option.Percentage)
		}
	}
	if sum != metric.TotalSubmissions {
		t.Errorf("Option counts %d do not add up to total %d", sum, metric.TotalSubmissions)
	}
}

func TestSubmitToPollUniqueIndexDecides(t *testing.T) {
	db := testutil.SetupTestDB(t)

	poll := testutil.CreateTestPoll(t, time.Now().Add(time.Hour), nil)
	participant := anonymous("slow")

	// Slip a competing row in after the pre-check has passed, inside the same transaction.
	var injected bool
	if err := db.Callback().Create().Before("gorm:create").Register("test:competing_submission", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*models.Submission); !ok || injected {
			return
		}
		injected = true
		competing := models.Submission{
			PollID:         poll.ID,
			OptionID:       poll.Options[1].ID,
			ParticipantKey: participant.Key,
		}
		if err := tx.Session(&gorm.Session{NewDB: true}).Create(&competing).Error; err != nil {
			t.Errorf("Failed to insert competing submission: %v", err)
		}
	}); err != nil {
		t.Fatalf("Failed to register callback: %v", err)
	}

	_, err := submit(poll, poll.Options[0].ID, participant, time.Now())
	if !injected {
		t.Fatalf("Expected the competing insert to run")
	}
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("Expected ErrDuplicateSubmission from the unique index, got %v", err)
	}

	assertCounters(t, poll.ID, 0, 0, 0, 0, 0)
}
