package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/repository"
	"github.com/noah-isme/gema-grading-api/pkg/htr"
)

type settlement struct {
	acked   bool
	nacked  bool
	requeue bool
}

func message(body string, s *settlement) htr.Message {
	return htr.Message{
		Body:          []byte(body),
		CorrelationID: "corr-1",
		Ack: func() error {
			s.acked = true
			return nil
		},
		Nack: func(requeue bool) error {
			s.nacked = true
			s.requeue = requeue
			return nil
		},
	}
}

type channelConsumer struct {
	deliveries chan htr.Message
}

func (c *channelConsumer) Consume(context.Context) (<-chan htr.Message, error) {
	return c.deliveries, nil
}

func newResultService(db *gorm.DB, consumer HTRConsumer, activity *memoryActivityRepo) AIResultService {
	return NewAIResultService(
		consumer,
		repository.NewWorkRepository(db),
		repository.NewVerificationRepository(db),
		NewActivityService(activity, testLogger()),
		testLogger(),
	)
}

func TestAIResultIngestAppliesStatusesAndComments(t *testing.T) {
	db := setupServiceDB(t)
	f := seedGrading(t, db)
	first, second := f.work.Answers[0].ID, f.work.Answers[1].ID
	seedAnswerFiles(t, db, first, models.FileAIStatusPending, "a.png")
	seedAnswerFiles(t, db, second, models.FileAIStatusPending, "b.png")

	activity := &memoryActivityRepo{}
	svc := newResultService(db, nil, activity)

	summary, err := svc.Ingest(context.Background(), htr.Result{
		WorkID: f.work.ID,
		Answers: []htr.ResultAnswer{
			{
				ID:    first,
				Files: []htr.ResultFile{{Key: "a.png", Status: "verified"}},
				Comments: []htr.ResultComment{
					{FileKey: "a.png", Description: "Sign error", TypeID: &f.commentType.ID, Coordinates: []htr.Rectangle{{X1: 1, Y1: 2, X2: 3, Y2: 4}}},
					{FileKey: "a.png", Description: "Unknown type", TypeID: uintPtr(999)},
				},
			},
			{ID: 4242, Files: []htr.ResultFile{{Key: "zzz.png", Status: "banned"}}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.UpdatedFiles)
	require.Equal(t, 2, summary.Comments)
	require.Equal(t, 1, summary.SkippedAnswers)
	require.False(t, summary.AIVerified)

	var comments []models.Comment
	require.NoError(t, db.Where("answer_id = ?", first).Order("id").Find(&comments).Error)
	require.Len(t, comments, 2)
	require.False(t, comments[0].Human)
	require.Equal(t, f.commentType.ID, *comments[0].TypeID)
	require.Len(t, comments[0].Coordinates, 1)
	require.Nil(t, comments[1].TypeID)

	summary, err = svc.Ingest(context.Background(), htr.Result{
		WorkID:  f.work.ID,
		Answers: []htr.ResultAnswer{{ID: second, Files: []htr.ResultFile{{Key: "b.png", Status: "banned"}}}},
	})
	require.NoError(t, err)
	require.True(t, summary.AIVerified)
	require.Equal(t, []string{"b.png"}, summary.BannedKeys)

	var banned models.AnswerFile
	require.NoError(t, db.Where("key = ?", "b.png").First(&banned).Error)
	require.Equal(t, models.FileAIStatusBanned, banned.AIStatus)

	var work models.Work
	require.NoError(t, db.First(&work, f.work.ID).Error)
	require.True(t, work.AIVerified)
	require.Equal(t, []string{ActionAIResultIngested, ActionAIResultIngested}, activity.actions())

	_, err = svc.Ingest(context.Background(), htr.Result{WorkID: 9999})
	require.ErrorIs(t, err, grading.ErrAggregateNotFound)
}

func TestAIResultHandleSettlesMessages(t *testing.T) {
	db := setupServiceDB(t)
	f := seedGrading(t, db)
	seedAnswerFiles(t, db, f.work.Answers[0].ID, models.FileAIStatusPending, "a.png")
	svc := newResultService(db, nil, &memoryActivityRepo{})
	ctx := context.Background()

	var invalid settlement
	svc.Handle(ctx, message(`{"answers": []}`, &invalid))
	require.True(t, invalid.nacked)
	require.False(t, invalid.requeue)

	var unknown settlement
	svc.Handle(ctx, message(`{"work_id": 9999, "answers": []}`, &unknown))
	require.True(t, unknown.nacked)
	require.False(t, unknown.requeue)

	var applied settlement
	body := fmt.Sprintf(`{"work_id": %d, "answers": [{"id": %d, "files": [{"key": "a.png", "status": "verified"}], "comments": []}]}`, f.work.ID, f.work.Answers[0].ID)
	svc.Handle(ctx, message(body, &applied))
	require.True(t, applied.acked)
	require.False(t, applied.nacked)
}

func TestAIResultRunStopsWhenChannelCloses(t *testing.T) {
	db := setupServiceDB(t)
	f := seedGrading(t, db)
	seedAnswerFiles(t, db, f.work.Answers[0].ID, models.FileAIStatusPending, "a.png")

	consumer := &channelConsumer{deliveries: make(chan htr.Message, 1)}
	svc := newResultService(db, consumer, &memoryActivityRepo{})

	var s settlement
	consumer.deliveries <- message(fmt.Sprintf(`{"work_id": %d, "answers": []}`, f.work.ID), &s)
	close(consumer.deliveries)

	require.NoError(t, svc.Run(context.Background()))
	require.True(t, s.acked)

	require.Error(t, newResultService(db, nil, &memoryActivityRepo{}).Run(context.Background()))
}

func TestAIResultHandleRequeuesFailureOnce(t *testing.T) {
	db := setupServiceDB(t)
	f := seedGrading(t, db)
	svc := newResultService(db, nil, &memoryActivityRepo{})

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	body := fmt.Sprintf(`{"work_id": %d, "answers": []}`, f.work.ID)

	var first settlement
	svc.Handle(context.Background(), message(body, &first))
	require.True(t, first.nacked)
	require.True(t, first.requeue)

	var again settlement
	redelivered := message(body, &again)
	redelivered.Redelivered = true
	svc.Handle(context.Background(), redelivered)
	require.True(t, again.nacked)
	require.False(t, again.requeue)
}
