package services

import (
	"context"
	"path"
	"strings"

	"devblog/pkg/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// UploadImage stores an image under the image folder as
// "<unix millis>-<name>.<ext>" and returns its repository-relative path for
// use in Markdown. The extension follows the sniffed content type, not name.
func (s *Synchronizer) UploadImage(ctx context.Context, owner, name string, data []byte) (*models.MediaFile, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrUnsupportedMedia, "empty upload")
	}
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, errors.Wrapf(ErrUnsupportedMedia, "%s", mtype.String())
	}

	filename := ImageFileName(path.Base(name), mtype.Extension(), s.now())
	p := path.Join(s.site.ImageFolder, filename)

	file, err := s.store.UploadBinary(ctx, owner, s.site.Repository, p, data, "Upload image: "+filename)
	if err != nil {
		return nil, errors.Wrapf(err, "upload %s", p)
	}
	if file != nil && file.Path != "" {
		p = file.Path
	}

	s.log.Info("image uploaded", zap.String("owner", owner), zap.String("path", p), zap.Int("size", len(data)))
	return &models.MediaFile{
		Name:        filename,
		Path:        p,
		Size:        int64(len(data)),
		ContentType: mtype.String(),
	}, nil
}
