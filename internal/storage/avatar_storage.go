package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/upscpath/prep-platform/internal/pkg/apperror"
)

// Допустимые форматы аватара: MIME реального содержимого → каноническое
// расширение, под которым файл ложится на диск.
var avatarFormats = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Хватает на магические байты всех допустимых форматов.
const sniffLen = 512

// AvatarStorage — файловое хранилище аватаров. Проверка содержимого живёт
// здесь же: наружу не выходит файл, не прошедший сверку магических байтов
// с расширением.
type AvatarStorage struct {
	rootPath       string
	maxUploadBytes int64
}

// NewAvatarStorage создаёт файловое хранилище.
func NewAvatarStorage(rootPath string, maxUploadMB int64) (*AvatarStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &AvatarStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Save проверяет содержимое и сохраняет аватар, возвращая относительный путь.
// Имя на диске строится из userID и реального типа; от клиентского имени
// берётся только расширение, и оно обязано соответствовать содержимому.
// Запись идёт через временный файл, чтобы при обрыве не оставался
// полупустой аватар.
func (s *AvatarStorage) Save(ctx context.Context, userID uuid.UUID, originalName string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	if !avatarExtAllowed(ext) {
		return "", 0, apperror.New(apperror.ErrCodeValidation,
			"неподдерживаемый формат файла. Разрешены: .jpg, .jpeg, .png, .webp")
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", 0, fmt.Errorf("storage: чтение файла: %w", err)
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "", 0, apperror.New(apperror.ErrCodeValidation,
			"не удалось определить тип файла. Разрешены только изображения")
	}

	canonicalExt, ok := avatarFormats[kind.MIME.Value]
	if !ok {
		return "", 0, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("неподдерживаемый тип файла (%s). Разрешены изображения jpeg, png, webp", kind.MIME.Value))
	}

	// .jpg и .jpeg равнозначны; остальные расширения обязаны совпасть с типом.
	if ext != canonicalExt && !(ext == ".jpeg" && canonicalExt == ".jpg") {
		return "", 0, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("расширение файла (%s) не соответствует реальному типу (%s)", ext, canonicalExt))
	}

	fileName := fmt.Sprintf("%s_%d%s", userID.String(), time.Now().UnixNano(), canonicalExt)

	userDir := filepath.Join(s.rootPath, userID.String())
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("storage: не удалось создать каталог пользователя: %w", err)
	}

	targetPath := filepath.Join(userDir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", 0, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	limitedReader := io.LimitedReader{
		R: io.MultiReader(bytes.NewReader(head), r),
		N: s.maxUploadBytes + 1,
	}
	written, err := io.Copy(f, &limitedReader)
	if err != nil {
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: ошибка записи файла: %w", err)
	}

	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return "", 0, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("размер файла превышает лимит %d МБ", s.maxUploadBytes/(1024*1024)))
	}

	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		return "", 0, fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	relative := filepath.Join(userID.String(), fileName)
	return relative, written, nil
}

// Delete удаляет аватар из хранилища.
func (s *AvatarStorage) Delete(ctx context.Context, relativePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(s.rootPath, relativePath)
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

func avatarExtAllowed(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	return false
}
