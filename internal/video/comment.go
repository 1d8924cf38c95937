package video

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/store"
	"github.com/hitoshi/dongin/internal/validation"
	"github.com/hitoshi/dongin/internal/visibility"
)

// CommentInput は受講生のコメント（テスト解答）入力。
type CommentInput struct {
	Comment      string `json:"comment" validate:"notblank,max=2000"`
	IsTestAnswer bool   `json:"isTestAnswer"`
}

// ReplyInput は講師の返信入力。
type ReplyInput struct {
	Content string `json:"content" validate:"notblank,max=2000"`
}

// Thread はコメントとそれへの返信。
type Thread struct {
	model.VideoComment
	Replies []model.VideoReply `json:"replies"`
}

// Comment は受講生が閲覧可能な動画にコメントを残す。
// 見えない動画は存在しないものとして扱う。
func (s *Service) Comment(ctx context.Context, student *model.User, videoID string, in CommentInput) (*model.VideoComment, error) {
	if !student.IsStudent() {
		return nil, model.NewForbiddenError()
	}
	in.Comment = s.stripper.StripTags(in.Comment)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.visibleVideo(ctx, student, videoID)
	if err != nil {
		return nil, err
	}
	comments, err := s.loadComments(ctx)
	if err != nil {
		return nil, err
	}
	c := model.VideoComment{
		ID:           uuid.New().String(),
		VideoID:      v.ID,
		StudentID:    student.ID,
		Week:         v.Week,
		Comment:      in.Comment,
		IsTestAnswer: in.IsTestAnswer,
		CreatedAt:    s.clock.TodayString(),
	}
	if err := s.saveComments(ctx, append(comments, c)); err != nil {
		return nil, err
	}

	slog.Info("video comment added",
		slog.String("comment_id", c.ID),
		slog.String("video_id", v.ID),
		slog.Bool("test_answer", c.IsTestAnswer),
	)
	return &c, nil
}

// MyThreads は受講生本人のコメントと返信を返す。videoIDが空なら全動画分。
func (s *Service) MyThreads(ctx context.Context, student *model.User, videoID string) ([]Thread, error) {
	if videoID != "" {
		if _, err := s.visibleVideo(ctx, student, videoID); err != nil {
			return nil, err
		}
	}
	return s.threads(ctx, func(c model.VideoComment) bool {
		return c.StudentID == student.ID && (videoID == "" || c.VideoID == videoID)
	})
}

// Threads は管理者向けに動画のコメントと返信を返す。videoIDが空なら全件。
func (s *Service) Threads(ctx context.Context, videoID string) ([]Thread, error) {
	return s.threads(ctx, func(c model.VideoComment) bool {
		return videoID == "" || c.VideoID == videoID
	})
}

// Reply は講師がコメントに返信する。返信はコメントした受講生のみに見える。
func (s *Service) Reply(ctx context.Context, commentID string, in ReplyInput) (*model.VideoReply, error) {
	in.Content = s.stripper.StripTags(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	comments, err := s.loadComments(ctx)
	if err != nil {
		return nil, err
	}
	found := false
	for _, c := range comments {
		if c.ID == commentID {
			found = true
			break
		}
	}
	if !found {
		return nil, model.NewNotFoundError("댓글", commentID)
	}

	replies, err := s.loadReplies(ctx)
	if err != nil {
		return nil, err
	}
	r := model.VideoReply{
		ID:        uuid.New().String(),
		CommentID: commentID,
		Author:    s.teacherName,
		Content:   in.Content,
		CreatedAt: s.clock.TodayString(),
		IsPrivate: true,
	}
	if err := s.saveReplies(ctx, append(replies, r)); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Service) visibleVideo(ctx context.Context, viewer *model.User, videoID string) (*model.VideoItem, error) {
	videos, err := s.loadVideos(ctx)
	if err != nil {
		return nil, err
	}
	today := s.clock.Today()
	for _, v := range videos {
		if v.ID == videoID && visibility.VideoVisible(v, viewer, today) {
			return &v, nil
		}
	}
	return nil, model.NewNotFoundError("영상", videoID)
}

func (s *Service) threads(ctx context.Context, match func(model.VideoComment) bool) ([]Thread, error) {
	comments, err := s.loadComments(ctx)
	if err != nil {
		return nil, err
	}
	replies, err := s.loadReplies(ctx)
	if err != nil {
		return nil, err
	}

	byComment := make(map[string][]model.VideoReply)
	for _, r := range replies {
		byComment[r.CommentID] = append(byComment[r.CommentID], r)
	}

	out := []Thread{}
	for _, c := range comments {
		if !match(c) {
			continue
		}
		rs := byComment[c.ID]
		if rs == nil {
			rs = []model.VideoReply{}
		}
		out = append(out, Thread{VideoComment: c, Replies: rs})
	}
	return out, nil
}

// deleteThreads は動画に付いたコメントと返信を削除する。
func (s *Service) deleteThreads(ctx context.Context, videoID string) {
	comments, err := s.loadComments(ctx)
	if err != nil {
		return
	}
	removed := make(map[string]bool)
	kept := visibility.Filter(comments, func(c model.VideoComment) bool {
		if c.VideoID == videoID {
			removed[c.ID] = true
			return false
		}
		return true
	})
	if len(removed) == 0 {
		return
	}
	if err := s.saveComments(ctx, kept); err != nil {
		slog.Error("failed to delete comments of removed video", slog.String("video_id", videoID))
		return
	}

	replies, err := s.loadReplies(ctx)
	if err != nil {
		return
	}
	keptReplies := visibility.Filter(replies, func(r model.VideoReply) bool { return !removed[r.CommentID] })
	if err := s.saveReplies(ctx, keptReplies); err != nil {
		slog.Error("failed to delete replies of removed video", slog.String("video_id", videoID))
	}
}

func (s *Service) loadComments(ctx context.Context) ([]model.VideoComment, error) {
	comments, err := store.Load(ctx, s.store, store.KeyVideoComments, []model.VideoComment{})
	if err != nil {
		return nil, model.NewStorageUnavailableError()
	}
	return comments, nil
}

func (s *Service) saveComments(ctx context.Context, comments []model.VideoComment) error {
	if err := store.Save(ctx, s.store, store.KeyVideoComments, comments); err != nil {
		return model.NewStorageUnavailableError()
	}
	return nil
}

func (s *Service) loadReplies(ctx context.Context) ([]model.VideoReply, error) {
	replies, err := store.Load(ctx, s.store, store.KeyVideoReplies, []model.VideoReply{})
	if err != nil {
		return nil, model.NewStorageUnavailableError()
	}
	return replies, nil
}

func (s *Service) saveReplies(ctx context.Context, replies []model.VideoReply) error {
	if err := store.Save(ctx, s.store, store.KeyVideoReplies, replies); err != nil {
		return model.NewStorageUnavailableError()
	}
	return nil
}
