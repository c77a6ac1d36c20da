package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/manutenzioni/internal/model"
)

type ImageStore struct {
	db *sql.DB
}

func NewImageStore(db *sql.DB) *ImageStore {
	return &ImageStore{db: db}
}

func scanImage(scanner interface{ Scan(...any) error }) (*model.TaskImage, error) {
	var i model.TaskImage
	var thumb sql.NullString
	err := scanner.Scan(&i.ID, &i.TaskID, &i.StoragePath, &thumb, &i.FileName,
		&i.FileSize, &i.MimeType, &i.UploadedBy, &i.CreatedAt)
	if err != nil {
		return nil, err
	}
	i.ThumbnailPath = stringPtr(thumb)
	return &i, nil
}

const imageCols = `id, task_id, storage_path, thumbnail_path, file_name, file_size, mime_type, uploaded_by, created_at`

func (s *ImageStore) Create(img model.TaskImage) (*model.TaskImage, error) {
	id := newID()
	_, err := s.db.Exec(
		`INSERT INTO task_images (id, task_id, storage_path, thumbnail_path, file_name, file_size, mime_type, uploaded_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, img.TaskID, img.StoragePath, nullString(img.ThumbnailPath), img.FileName,
		img.FileSize, img.MimeType, img.UploadedBy, utc(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert image: %w", err)
	}
	return s.GetByID(id)
}

func (s *ImageStore) GetByID(id string) (*model.TaskImage, error) {
	row := s.db.QueryRow(`SELECT `+imageCols+` FROM task_images WHERE id = ?`, id)
	i, err := scanImage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return i, nil
}

// ListByTask returns the task's images, newest first.
func (s *ImageStore) ListByTask(taskID string) ([]model.TaskImage, error) {
	rows, err := s.db.Query(
		`SELECT `+imageCols+` FROM task_images WHERE task_id = ? ORDER BY created_at DESC, rowid DESC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var images []model.TaskImage
	for rows.Next() {
		i, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, *i)
	}
	return images, rows.Err()
}

func (s *ImageStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM task_images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

func (s *ImageStore) DeleteByTask(taskID string) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM task_images WHERE task_id = ?`, taskID)
	if err != nil {
		return 0, fmt.Errorf("delete task images: %w", err)
	}
	return result.RowsAffected()
}
