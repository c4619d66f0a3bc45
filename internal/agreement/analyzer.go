// Package agreement computes inter-annotator agreement for chat rooms whose
// messages have been partitioned into threads by several annotators.
//
// Thread labels are private to each annotator, so two annotation sets are
// compared through the label correspondence that maximizes agreement rather
// than by label equality. Everything here is a pure function of its inputs;
// loading rooms and annotations is the caller's job.
package agreement

import (
	"errors"
	"fmt"
)

var ErrRoomHasNoMessages = errors.New("chat room has no messages")

// Status classifies how far the annotation of a room has progressed.
type Status string

const (
	StatusNotEnoughData Status = "NotEnoughData"
	StatusPartial       Status = "Partial"
	StatusComplete      Status = "Complete"
)

// Annotator identifies a user expected to annotate a room.
type Annotator struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// AnnotatorProgress is an annotator together with how many of the room's
// messages they have labeled.
type AnnotatorProgress struct {
	Annotator
	AnnotatedCount int `json:"annotated_count"`
}

// PairwiseAgreement is the score between two completed annotators.
type PairwiseAgreement struct {
	Annotator1ID    int64       `json:"annotator_1_id"`
	Annotator1Email string      `json:"annotator_1_email"`
	Annotator2ID    int64       `json:"annotator_2_id"`
	Annotator2Email string      `json:"annotator_2_email"`
	Accuracy        float64     `json:"accuracy"`
	LabelMapping    []LabelPair `json:"label_mapping,omitempty"`
}

// RoomInput is a read-only snapshot of everything the analysis needs.
// MessageIDs is the canonical message order; Annotations maps annotator ID
// to that annotator's message ID -> thread label map.
type RoomInput struct {
	RoomID      int64
	RoomName    string
	MessageIDs  []string
	Roster      []Annotator
	Annotations map[int64]map[string]string
}

// Report is the agreement analysis of one room.
type Report struct {
	RoomID              int64               `json:"chat_room_id"`
	RoomName            string              `json:"chat_room_name"`
	MessageCount        int                 `json:"message_count"`
	AnnotatorCount      int                 `json:"annotator_count"`
	Status              Status              `json:"analysis_status"`
	IsFullyAnnotated    bool                `json:"is_fully_annotated"`
	CompletedAnnotators []AnnotatorProgress `json:"completed_annotators"`
	PendingAnnotators   []AnnotatorProgress `json:"pending_annotators"`
	PairwiseAccuracies  []PairwiseAgreement `json:"pairwise_accuracies"`
}

// AnalyzeRoom classifies the roster into completed and pending annotators
// and scores every pair of completed annotators.
//
// An annotator is complete when they have a label for every canonical
// message. Labels for message IDs outside the canonical list are ignored.
// Annotation sets of users not on the roster are never looked at.
func AnalyzeRoom(in RoomInput) (*Report, error) {
	if len(in.MessageIDs) == 0 {
		return nil, ErrRoomHasNoMessages
	}

	canonical := make(map[string]struct{}, len(in.MessageIDs))
	for _, id := range in.MessageIDs {
		canonical[id] = struct{}{}
	}

	report := &Report{
		RoomID:              in.RoomID,
		RoomName:            in.RoomName,
		MessageCount:        len(in.MessageIDs),
		AnnotatorCount:      len(in.Roster),
		CompletedAnnotators: []AnnotatorProgress{},
		PendingAnnotators:   []AnnotatorProgress{},
		PairwiseAccuracies:  []PairwiseAgreement{},
	}

	for _, a := range in.Roster {
		labeled := 0
		for id := range in.Annotations[a.ID] {
			if _, ok := canonical[id]; ok {
				labeled++
			}
		}
		p := AnnotatorProgress{Annotator: a, AnnotatedCount: labeled}
		if labeled == len(in.MessageIDs) {
			report.CompletedAnnotators = append(report.CompletedAnnotators, p)
		} else {
			report.PendingAnnotators = append(report.PendingAnnotators, p)
		}
	}

	completed := report.CompletedAnnotators
	if len(completed) < 2 {
		report.Status = StatusNotEnoughData
		return report, nil
	}

	vectors := make([][]string, len(completed))
	for k, a := range completed {
		vectors[k] = labelVector(in.MessageIDs, a.ID, in.Annotations[a.ID])
	}

	for i := 0; i < len(completed); i++ {
		for j := i + 1; j < len(completed); j++ {
			res := Agreement(vectors[i], vectors[j])
			report.PairwiseAccuracies = append(report.PairwiseAccuracies, PairwiseAgreement{
				Annotator1ID:    completed[i].ID,
				Annotator1Email: completed[i].Email,
				Annotator2ID:    completed[j].ID,
				Annotator2Email: completed[j].Email,
				Accuracy:        res.Accuracy,
				LabelMapping:    res.Mapping,
			})
		}
	}

	if len(report.PendingAnnotators) == 0 {
		report.Status = StatusComplete
		report.IsFullyAnnotated = true
	} else {
		report.Status = StatusPartial
	}
	return report, nil
}

// labelVector aligns one annotator's labels to the canonical message order.
// Only called for completed annotators, so every lookup must succeed.
func labelVector(messageIDs []string, annotatorID int64, labels map[string]string) []string {
	out := make([]string, len(messageIDs))
	for i, id := range messageIDs {
		l, ok := labels[id]
		if !ok {
			panic(fmt.Sprintf("agreement: completed annotator %d has no label for message %q", annotatorID, id))
		}
		out[i] = l
	}
	return out
}
