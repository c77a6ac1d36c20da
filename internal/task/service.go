package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/dukerupert/manutenzioni/internal/model"
	"github.com/dukerupert/manutenzioni/internal/storage"
	"github.com/dukerupert/manutenzioni/internal/store"
)

const MaxImageSize = 10 << 20

var (
	ErrInvalid       = errors.New("invalid task")
	ErrImageNotFound = errors.New("image not found")
	ErrNotImage      = errors.New("file is not an image")
	ErrImageTooLarge = fmt.Errorf("image exceeds %d MiB", MaxImageSize>>20)
)

// Blobs is the object storage the service writes images to.
type Blobs interface {
	Upload(ctx context.Context, bucket storage.Bucket, key, contentType string, data []byte) error
	Remove(ctx context.Context, bucket storage.Bucket, keys ...string) error
	PublicURL(bucket storage.Bucket, key string) string
}

// Broadcaster announces changes so clients refetch.
type Broadcaster interface {
	Notify(entity, action, id string) uint64
}

type Service struct {
	tasks  *store.TaskStore
	images *store.ImageStore
	logs   *store.TaskLogStore
	blobs  Blobs
	hub    Broadcaster
	logger *slog.Logger
	now    func() time.Time
}

func NewService(ts *store.TaskStore, is *store.ImageStore, ls *store.TaskLogStore, blobs Blobs, hub Broadcaster, logger *slog.Logger) *Service {
	return &Service{
		tasks:  ts,
		images: is,
		logs:   ls,
		blobs:  blobs,
		hub:    hub,
		logger: logger.With("component", "task"),
		now:    time.Now,
	}
}

func validate(in store.TaskInput) error {
	if err := in.Target.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalid)
	}
	if strings.TrimSpace(in.ReportedBy) == "" {
		return fmt.Errorf("%w: reporter is required", ErrInvalid)
	}
	return nil
}

// audit appends to the task log. Failures are logged, never returned.
func (s *Service) audit(taskID string, action model.TaskAction, actorID string) {
	if _, err := s.logs.Append(taskID, action, actorID); err != nil {
		s.logger.Warn("task log append failed", "task_id", taskID, "action", action, "error", err)
	}
}

func (s *Service) Create(ctx context.Context, actorID string, in store.TaskInput) (*model.Task, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	in.Status = model.StatusPending
	in.CompletedAt = nil
	t, err := s.tasks.Create(in)
	if err != nil {
		return nil, err
	}
	s.audit(t.ID, model.ActionCreated, actorID)
	s.hub.Notify("task", "created", t.ID)
	return t, nil
}

func (s *Service) Update(ctx context.Context, id string, in store.TaskInput) (*model.Task, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	existing, err := s.tasks.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	t, err := s.tasks.Update(id, in)
	if err != nil {
		return nil, err
	}
	s.hub.Notify("task", "updated", id)
	return t, nil
}

// Apply performs a status transition: the row update, a best-effort
// audit entry and an invalidation broadcast, in that order.
func (s *Service) Apply(ctx context.Context, id string, tr Transition, actorID string) (*model.Task, error) {
	t, err := s.tasks.GetByID(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	next, err := Next(t.Status, tr)
	if err != nil {
		return nil, err
	}

	completedAt := t.CompletedAt
	switch next {
	case model.StatusCompleted:
		now := s.now()
		completedAt = &now
	case model.StatusPending:
		completedAt = nil
	}

	updated, err := s.tasks.UpdateStatus(id, next, completedAt)
	if err != nil {
		return nil, err
	}
	action := actionFor(tr)
	s.audit(id, action, actorID)
	s.hub.Notify("task", string(action), id)
	s.logger.Info("task status changed", "task_id", id, "from", t.Status, "to", next, "actor", actorID)
	return updated, nil
}

func (s *Service) Complete(ctx context.Context, id, actorID string) (*model.Task, error) {
	return s.Apply(ctx, id, Complete, actorID)
}

func (s *Service) Restore(ctx context.Context, id, actorID string) (*model.Task, error) {
	return s.Apply(ctx, id, Restore, actorID)
}

func (s *Service) Archive(ctx context.Context, id, actorID string) (*model.Task, error) {
	return s.Apply(ctx, id, Archive, actorID)
}

// Delete removes a task and everything it owns, in order: storage objects
// (errors logged and skipped), image rows, an audit entry, the task row.
// A failing row step stops the sequence.
func (s *Service) Delete(ctx context.Context, id, actorID string) error {
	t, err := s.tasks.GetByID(id)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNotFound
	}

	images, err := s.images.ListByTask(id)
	if err != nil {
		return err
	}
	var keys []string
	for _, img := range images {
		keys = append(keys, img.StorageKeys()...)
	}
	if err := s.blobs.Remove(ctx, storage.BucketTaskImages, keys...); err != nil {
		s.logger.Warn("remove task images from storage", "task_id", id, "objects", len(keys), "error", err)
	}

	if _, err := s.images.DeleteByTask(id); err != nil {
		return err
	}
	s.audit(id, model.ActionDeleted, actorID)
	if err := s.tasks.Delete(id); err != nil {
		return err
	}

	s.hub.Notify("task", "deleted", id)
	s.logger.Info("task deleted", "task_id", id, "images", len(images), "actor", actorID)
	return nil
}

// ImageView is an image with resolved URLs.
type ImageView struct {
	model.TaskImage
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

func (s *Service) view(img model.TaskImage) ImageView {
	v := ImageView{TaskImage: img, URL: s.blobs.PublicURL(storage.BucketTaskImages, img.StoragePath)}
	if img.ThumbnailPath != nil {
		v.ThumbnailURL = s.blobs.PublicURL(storage.BucketTaskImages, *img.ThumbnailPath)
	}
	return v
}

// Images lists a task's images, newest first.
func (s *Service) Images(ctx context.Context, taskID string) ([]ImageView, error) {
	images, err := s.images.ListByTask(taskID)
	if err != nil {
		return nil, err
	}
	views := make([]ImageView, len(images))
	for i, img := range images {
		views[i] = s.view(img)
	}
	return views, nil
}

// Upload describes a file received from a client.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

func imageExt(u Upload) string {
	if ext := strings.ToLower(path.Ext(u.FileName)); ext != "" {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(u.ContentType); len(exts) > 0 {
		return exts[0]
	}
	return ".jpg"
}

// UploadImage stores the image and a thumbnail, then records the row. If
// the row cannot be written the uploaded objects are removed again.
func (s *Service) UploadImage(ctx context.Context, taskID, actorID string, u Upload) (*ImageView, error) {
	if !strings.HasPrefix(u.ContentType, "image/") {
		return nil, ErrNotImage
	}
	if len(u.Data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	t, err := s.tasks.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}

	stamp := s.now().UnixMilli()
	key := fmt.Sprintf("%s/%d%s", taskID, stamp, imageExt(u))
	if err := s.blobs.Upload(ctx, storage.BucketTaskImages, key, u.ContentType, u.Data); err != nil {
		return nil, err
	}
	uploaded := []string{key}

	var thumbPath *string
	if thumb, err := storage.Thumbnail(u.Data); err != nil {
		s.logger.Debug("no thumbnail", "task_id", taskID, "error", err)
	} else {
		thumbKey := fmt.Sprintf("%s/%d_thumb.jpg", taskID, stamp)
		if err := s.blobs.Upload(ctx, storage.BucketTaskImages, thumbKey, "image/jpeg", thumb); err != nil {
			s.logger.Warn("upload thumbnail", "task_id", taskID, "error", err)
		} else {
			thumbPath = &thumbKey
			uploaded = append(uploaded, thumbKey)
		}
	}

	img, err := s.images.Create(model.TaskImage{
		TaskID:        taskID,
		StoragePath:   key,
		ThumbnailPath: thumbPath,
		FileName:      u.FileName,
		FileSize:      int64(len(u.Data)),
		MimeType:      u.ContentType,
		UploadedBy:    actorID,
	})
	if err != nil {
		if rmErr := s.blobs.Remove(ctx, storage.BucketTaskImages, uploaded...); rmErr != nil {
			s.logger.Warn("remove orphaned upload", "task_id", taskID, "error", rmErr)
		}
		return nil, err
	}

	s.hub.Notify("task_image", "uploaded", taskID)
	v := s.view(*img)
	return &v, nil
}

// DeleteImage removes the image's objects and then its row. A storage
// failure leaves the row in place.
func (s *Service) DeleteImage(ctx context.Context, taskID, imageID string) error {
	img, err := s.images.GetByID(imageID)
	if err != nil {
		return err
	}
	if img == nil || img.TaskID != taskID {
		return ErrImageNotFound
	}
	if err := s.blobs.Remove(ctx, storage.BucketTaskImages, img.StorageKeys()...); err != nil {
		return err
	}
	if err := s.images.Delete(imageID); err != nil {
		return err
	}
	s.hub.Notify("task_image", "deleted", taskID)
	return nil
}
