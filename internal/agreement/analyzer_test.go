package agreement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = Annotator{ID: 1, Email: "alice@example.com"}
	bob   = Annotator{ID: 2, Email: "bob@example.com"}
	carol = Annotator{ID: 3, Email: "carol@example.com"}
)

var fourMessages = []string{"m1", "m2", "m3", "m4"}

func fullSet(labels ...string) map[string]string {
	out := make(map[string]string, len(labels))
	for i, l := range labels {
		out[fourMessages[i]] = l
	}
	return out
}

func TestAnalyzeRoom_IdenticalAnnotators(t *testing.T) {
	report, err := AnalyzeRoom(RoomInput{
		RoomID:     10,
		RoomName:   "VAC_R10",
		MessageIDs: fourMessages,
		Roster:     []Annotator{alice, bob},
		Annotations: map[int64]map[string]string{
			alice.ID: fullSet("T0", "T0", "T1", "T1"),
			bob.ID:   fullSet("X", "X", "Y", "Y"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusComplete, report.Status)
	assert.True(t, report.IsFullyAnnotated)
	assert.Equal(t, int64(10), report.RoomID)
	assert.Equal(t, "VAC_R10", report.RoomName)
	assert.Equal(t, 4, report.MessageCount)
	assert.Equal(t, 2, report.AnnotatorCount)
	require.Len(t, report.PairwiseAccuracies, 1)

	pair := report.PairwiseAccuracies[0]
	assert.Equal(t, alice.ID, pair.Annotator1ID)
	assert.Equal(t, alice.Email, pair.Annotator1Email)
	assert.Equal(t, bob.ID, pair.Annotator2ID)
	assert.Equal(t, bob.Email, pair.Annotator2Email)
	assert.Equal(t, 100.0, pair.Accuracy)
}

func TestAnalyzeRoom_PartialDisagreement(t *testing.T) {
	report, err := AnalyzeRoom(RoomInput{
		MessageIDs: fourMessages,
		Roster:     []Annotator{alice, carol},
		Annotations: map[int64]map[string]string{
			alice.ID: fullSet("T0", "T0", "T1", "T1"),
			carol.ID: fullSet("X", "Y", "Y", "Y"),
		},
	})
	require.NoError(t, err)

	require.Len(t, report.PairwiseAccuracies, 1)
	assert.Equal(t, 75.0, report.PairwiseAccuracies[0].Accuracy)
}

func TestAnalyzeRoom_StatusThresholds(t *testing.T) {
	partial := map[string]string{"m1": "a", "m2": "a", "m3": "b"}

	tests := []struct {
		name        string
		annotations map[int64]map[string]string
		status      Status
		completed   []int64
		pending     []int64
		pairs       int
	}{
		{
			name:        "none completed",
			annotations: map[int64]map[string]string{alice.ID: partial},
			status:      StatusNotEnoughData,
			pending:     []int64{alice.ID, bob.ID, carol.ID},
		},
		{
			name: "one completed",
			annotations: map[int64]map[string]string{
				alice.ID: fullSet("a", "a", "b", "b"),
				bob.ID:   partial,
			},
			status:    StatusNotEnoughData,
			completed: []int64{alice.ID},
			pending:   []int64{bob.ID, carol.ID},
		},
		{
			name: "two of three completed",
			annotations: map[int64]map[string]string{
				alice.ID: fullSet("a", "a", "b", "b"),
				bob.ID:   partial,
				carol.ID: fullSet("x", "y", "y", "y"),
			},
			status:    StatusPartial,
			completed: []int64{alice.ID, carol.ID},
			pending:   []int64{bob.ID},
			pairs:     1,
		},
		{
			name: "all completed",
			annotations: map[int64]map[string]string{
				alice.ID: fullSet("a", "a", "b", "b"),
				bob.ID:   fullSet("p", "q", "p", "q"),
				carol.ID: fullSet("x", "y", "y", "y"),
			},
			status:    StatusComplete,
			completed: []int64{alice.ID, bob.ID, carol.ID},
			pairs:     3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := AnalyzeRoom(RoomInput{
				MessageIDs:  fourMessages,
				Roster:      []Annotator{alice, bob, carol},
				Annotations: tt.annotations,
			})
			require.NoError(t, err)

			assert.Equal(t, tt.status, report.Status)
			assert.Equal(t, tt.status == StatusComplete, report.IsFullyAnnotated)
			assert.ElementsMatch(t, tt.completed, ids(report.CompletedAnnotators))
			assert.ElementsMatch(t, tt.pending, ids(report.PendingAnnotators))
			assert.Len(t, report.PairwiseAccuracies, tt.pairs)
			assert.NotNil(t, report.PairwiseAccuracies)
		})
	}
}

func TestAnalyzeRoom_PairOrderFollowsRoster(t *testing.T) {
	report, err := AnalyzeRoom(RoomInput{
		MessageIDs: fourMessages,
		Roster:     []Annotator{carol, alice, bob},
		Annotations: map[int64]map[string]string{
			alice.ID: fullSet("a", "a", "b", "b"),
			bob.ID:   fullSet("p", "q", "p", "q"),
			carol.ID: fullSet("x", "y", "y", "y"),
		},
	})
	require.NoError(t, err)

	require.Len(t, report.PairwiseAccuracies, 3)
	got := [][2]int64{}
	for _, p := range report.PairwiseAccuracies {
		got = append(got, [2]int64{p.Annotator1ID, p.Annotator2ID})
	}
	assert.Equal(t, [][2]int64{{3, 1}, {3, 2}, {1, 2}}, got)
}

func TestAnalyzeRoom_Classification(t *testing.T) {
	report, err := AnalyzeRoom(RoomInput{
		MessageIDs: fourMessages,
		Roster:     []Annotator{alice, bob},
		Annotations: map[int64]map[string]string{
			alice.ID: fullSet("a", "a", "b", "b"),
			bob.ID:   {"m1": "a", "m2": "a", "m3": "b"},
		},
	})
	require.NoError(t, err)

	require.Len(t, report.CompletedAnnotators, 1)
	require.Len(t, report.PendingAnnotators, 1)
	assert.Equal(t, alice.ID, report.CompletedAnnotators[0].ID)
	assert.Equal(t, 4, report.CompletedAnnotators[0].AnnotatedCount)
	assert.Equal(t, bob.ID, report.PendingAnnotators[0].ID)
	assert.Equal(t, 3, report.PendingAnnotators[0].AnnotatedCount)
	assert.Equal(t, StatusNotEnoughData, report.Status)
	assert.Empty(t, report.PairwiseAccuracies)
}

func TestAnalyzeRoom_ExtraneousMessageIDsIgnored(t *testing.T) {
	withStray := fullSet("a", "a", "b", "b")
	withStray["m99"] = "c"
	onlyStray := map[string]string{"m1": "a", "m2": "a", "m3": "b", "ghost": "z"}

	report, err := AnalyzeRoom(RoomInput{
		MessageIDs: fourMessages,
		Roster:     []Annotator{alice, bob, carol},
		Annotations: map[int64]map[string]string{
			alice.ID: withStray,
			bob.ID:   fullSet("x", "x", "y", "y"),
			carol.ID: onlyStray,
		},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{alice.ID, bob.ID}, ids(report.CompletedAnnotators))
	assert.ElementsMatch(t, []int64{carol.ID}, ids(report.PendingAnnotators))
	require.Len(t, report.PairwiseAccuracies, 1)
	assert.Equal(t, 100.0, report.PairwiseAccuracies[0].Accuracy)
}

func TestAnalyzeRoom_IgnoresAnnotatorsOffRoster(t *testing.T) {
	report, err := AnalyzeRoom(RoomInput{
		MessageIDs: fourMessages,
		Roster:     []Annotator{alice},
		Annotations: map[int64]map[string]string{
			alice.ID: fullSet("a", "a", "b", "b"),
			bob.ID:   fullSet("a", "a", "b", "b"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusNotEnoughData, report.Status)
	assert.Equal(t, 1, report.AnnotatorCount)
	assert.Empty(t, report.PairwiseAccuracies)
}

func TestAnalyzeRoom_NoMessages(t *testing.T) {
	report, err := AnalyzeRoom(RoomInput{
		Roster: []Annotator{alice, bob},
	})
	assert.ErrorIs(t, err, ErrRoomHasNoMessages)
	assert.Nil(t, report)
}

func TestAnalyzeRoom_Deterministic(t *testing.T) {
	in := RoomInput{
		MessageIDs: fourMessages,
		Roster:     []Annotator{alice, bob, carol},
		Annotations: map[int64]map[string]string{
			alice.ID: fullSet("a", "a", "b", "b"),
			bob.ID:   fullSet("p", "q", "p", "q"),
			carol.ID: fullSet("x", "y", "y", "y"),
		},
	}

	first, err := AnalyzeRoom(in)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := AnalyzeRoom(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestLabelVector_MissingLabelPanics(t *testing.T) {
	assert.Panics(t, func() {
		labelVector(fourMessages, 1, map[string]string{"m1": "a"})
	})
}

func ids(list []AnnotatorProgress) []int64 {
	out := make([]int64, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}
