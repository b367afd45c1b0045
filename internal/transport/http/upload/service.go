package upload

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	domain "wpguard/internal/domain/upload"
	"wpguard/internal/platform/config"
	"wpguard/internal/platform/errors"
	httptransport "wpguard/internal/transport/http"
	"wpguard/internal/utils"
)

// Examiner is the part of upload.Validator the endpoint needs.
type Examiner interface {
	Examine(ctx context.Context, d domain.Descriptor) domain.Descriptor
}

// Service 上传校验接口的HTTP传输层实现
type Service struct {
	examiner Examiner
	logger   *utils.Logger
	tempDir  string
	maxSize  int64
}

// NewService 创建上传校验服务
func NewService(examiner Examiner, cfg config.UploadConfig, logger *utils.Logger) (*Service, error) {
	if examiner == nil {
		return nil, errors.New(errors.KindTransport, "upload.new", "examiner is required")
	}
	return &Service{
		examiner: examiner,
		logger:   logger,
		tempDir:  cfg.TempDir,
		maxSize:  cfg.MaxFileSize,
	}, nil
}

// Register 注册上传相关的HTTP路由
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.POST("/uploads/examine", s.handleExamine)
	s.logger.InfoTag("HTTP", "上传校验路由注册完成")
	return nil
}

// handleExamine spools the multipart "file" part to disk and runs it through
// the validator. An optional "name" field overrides the client filename.
func (s *Service) handleExamine(c *gin.Context) {
	if s.maxSize > 0 {
		// leave headroom for the multipart envelope
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxSize+64*1024)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "缺少上传文件字段 file", nil)
		return
	}
	if s.maxSize > 0 && fh.Size > s.maxSize {
		httptransport.RespondError(c, http.StatusRequestEntityTooLarge, "文件过大", nil)
		return
	}

	tmpPath, err := s.spool(fh)
	if err != nil {
		s.logger.ErrorTag("Upload", "保存临时文件失败: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, "保存临时文件失败", nil)
		return
	}
	defer os.Remove(tmpPath)

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = filepath.Base(fh.Filename)
	}

	result := s.examiner.Examine(c.Request.Context(), domain.Descriptor{
		Type:    fh.Header.Get("Content-Type"),
		Name:    name,
		TmpPath: tmpPath,
		Size:    fh.Size,
	})

	if result.Error != "" {
		httptransport.RespondError(c, http.StatusUnprocessableEntity, result.Error, result)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, result, "")
}

func (s *Service) spool(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp(s.tempDir, "wpguard-upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}
