package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"learnai/internal/util"
	"learnai/pkg/domain"
	"learnai/pkg/extract"
	"learnai/pkg/storage"
)

// UploadInput is a file submitted by the web client. Content is either the
// already-extracted text or, with Encoding "base64", the raw file body.
type UploadInput struct {
	UserID    string
	SessionID string
	Filename  string
	Content   string
	Encoding  string
}

// SaveUploadedFile stores the text of an uploaded file, optionally tied to a
// session of the same user. Raw bodies are archived when an object store is
// configured.
func (a *App) SaveUploadedFile(ctx context.Context, in UploadInput) (domain.UploadedFile, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.Filename = strings.TrimSpace(in.Filename)
	if in.UserID == "" || in.Filename == "" || in.Content == "" {
		return domain.UploadedFile{}, ErrMissingUploadFields
	}
	if in.SessionID != "" {
		session, err := a.GetSession(in.SessionID)
		if err != nil {
			return domain.UploadedFile{}, err
		}
		if session.UserID != in.UserID {
			return domain.UploadedFile{}, ErrSessionNotFound
		}
	}

	raw, text, err := decodeUpload(in)
	if err != nil {
		return domain.UploadedFile{}, err
	}

	file := domain.UploadedFile{
		ID:         util.NewID(),
		UserID:     in.UserID,
		SessionID:  in.SessionID,
		Filename:   in.Filename,
		Content:    text,
		UploadedAt: a.now().UTC(),
	}
	if a.objects != nil {
		key := storage.UploadKey(file.UserID, file.ID, file.Filename)
		if err := a.objects.Put(ctx, key, bytes.NewReader(raw), int64(len(raw)), storage.ContentType(file.Filename)); err != nil {
			return domain.UploadedFile{}, fmt.Errorf("archive upload: %w", err)
		}
		file.StorageKey = key
	}
	if err := a.store.SaveUploadedFile(file); err != nil {
		if file.StorageKey != "" {
			if delErr := a.objects.Delete(ctx, file.StorageKey); delErr != nil {
				util.LoggerFromContext(ctx).Warn("orphaned upload object", "key", file.StorageKey, "err", delErr)
			}
		}
		return domain.UploadedFile{}, fmt.Errorf("save upload: %w", err)
	}
	return file, nil
}

func decodeUpload(in UploadInput) ([]byte, string, error) {
	switch strings.ToLower(strings.TrimSpace(in.Encoding)) {
	case "", "text", "utf8", "utf-8":
		return []byte(in.Content), in.Content, nil
	case "base64":
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(in.Content))
		if err != nil {
			return nil, "", fmt.Errorf("%w: content is not valid base64", ErrInvalidUpload)
		}
		text, err := extract.Text(in.Filename, raw)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrInvalidUpload, err)
		}
		return raw, text, nil
	default:
		return nil, "", fmt.Errorf("%w: unknown encoding %q", ErrInvalidUpload, in.Encoding)
	}
}

// ListSessionFiles returns the files attached to a session, oldest first.
func (a *App) ListSessionFiles(sessionID string) ([]domain.UploadedFile, error) {
	session, err := a.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	files, err := a.store.ListFilesBySession(session.ID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}
