package gym

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/habedi/gymctl/client"
	"github.com/habedi/gymctl/pkg/validation"
	"github.com/rs/zerolog/log"
)

// AvatarField is the multipart field the server reads the avatar from.
const AvatarField = "avatar"

var avatarTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// ErrUnsupportedAvatar is returned for files that are not a supported image.
var ErrUnsupportedAvatar = errors.New("unsupported avatar format; use jpg, jpeg, png, gif or webp")

// AvatarFileName builds the upload name from the user's name and the
// extension of the original file, e.g. "Ana Maria" + "me.PNG" -> "ana-maria.png".
func AvatarFileName(userName, original string) (string, string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(original), "."))
	contentType, ok := avatarTypes[ext]
	if !ok {
		return "", "", ErrUnsupportedAvatar
	}
	base := strings.ToLower(strings.Join(strings.Fields(userName), "-"))
	if base == "" {
		base = "avatar"
	}
	return base + "." + ext, contentType, nil
}

// UploadAvatar uploads content as the user's avatar and returns the file name
// the server stored it under.
func (a *API) UploadAvatar(ctx context.Context, userName, original string, content []byte) (string, error) {
	if err := validation.ValidateAvatarSize(int64(len(content))); err != nil {
		return "", err
	}
	name, contentType, err := AvatarFileName(userName, original)
	if err != nil {
		return "", err
	}

	body := &client.Multipart{Files: []client.FilePart{{
		Field:       AvatarField,
		FileName:    name,
		ContentType: contentType,
		Content:     content,
	}}}
	resp, err := a.transport.Do(ctx, client.NewRequest(http.MethodPatch, "users/avatar", body))
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}

	var out struct {
		Avatar string `json:"avatar"`
	}
	if err := resp.DecodeJSON(&out); err != nil {
		return "", fmt.Errorf("failed to decode avatar response: %w", err)
	}
	if out.Avatar == "" {
		return "", errors.New("avatar response did not contain a file name")
	}
	log.Info().Str("avatar", out.Avatar).Int("bytes", len(content)).Msg("Avatar uploaded")
	return out.Avatar, nil
}
