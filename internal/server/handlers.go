package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Belphemur/SubTranslate/internal/config"
	"github.com/Belphemur/SubTranslate/internal/models"
	"github.com/Belphemur/SubTranslate/internal/services"
)

// translateBody is the payload of POST /translate/. Settings fields override
// the stored settings for this request only.
type translateBody struct {
	SelectedFiles []models.FilePair `json:"selected_files"`
	config.SettingsPatch
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) uploadFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "expected a multipart form with files")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		badRequest(c, "no files uploaded")
		return
	}

	files := make([]services.UploadedFile, 0, len(headers))
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			s.fail(c, fmt.Errorf("open upload %s: %w", h.Filename, err))
			return
		}
		opened = append(opened, f)
		files = append(files, services.UploadedFile{Name: h.Filename, Content: f})
	}

	result, err := s.opts.Uploads.Store(files)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.Settings.Get().Redacted())
}

func (s *Server) updateConfig(c *gin.Context) {
	var patch config.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid settings: "+err.Error())
		return
	}
	updated, err := s.opts.Settings.Update(patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info().Str("provider", updated.Provider).Str("model", updated.Model).Str("language", updated.LanguageCode).Msg("Configuration updated")
	c.JSON(http.StatusOK, gin.H{
		"message":  "Configuration updated successfully",
		"settings": updated.Redacted(),
	})
}

func (s *Server) listModels(c *gin.Context) {
	provider := c.DefaultQuery("provider", s.opts.Settings.Get().Provider)
	names := s.opts.Models[provider]
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, names)
}

func (s *Server) translate(c *gin.Context) {
	var body translateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	if len(body.SelectedFiles) == 0 {
		badRequest(c, "no files selected")
		return
	}

	settings := s.opts.Settings.Get().Apply(body.SettingsPatch)
	resp := s.opts.Jobs.TranslateFiles(c.Request.Context(), services.TranslateRequest{
		Files:    body.SelectedFiles,
		Settings: settings,
	})
	c.JSON(http.StatusOK, resp)
}

func (s *Server) tmdbInfo(c *gin.Context) {
	filename := strings.TrimSpace(c.Query("filename"))
	if filename == "" {
		badRequest(c, "filename is required")
		return
	}
	info, err := s.opts.Media.Lookup(c.Request.Context(), filename, c.Query("series_title"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// streamLogs writes every broadcast event as an SSE "data:" frame until the
// client goes away.
func (s *Server) streamLogs(c *gin.Context) {
	sub := s.opts.Events.Subscribe()
	defer s.opts.Events.Unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(s.opts.KeepAlive)
	defer ticker.Stop()
	ctx := c.Request.Context()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			_, err := io.WriteString(w, ": keep-alive\n\n")
			return err == nil
		case e, ok := <-sub.C:
			if !ok {
				return false
			}
			data, err := json.Marshal(e)
			if err != nil {
				return true
			}
			_, err = fmt.Fprintf(w, "data: %s\n\n", data)
			return err == nil
		}
	})
}

func (s *Server) download(c *gin.Context) {
	name := c.Param("filename")
	path, err := s.opts.Uploads.OutputPath(name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Type", "application/octet-stream")
	c.FileAttachment(path, filepath.Base(path))
}

func (s *Server) clearCache(c *gin.Context) {
	if err := s.opts.Cache.Clear(); err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info().Msg("Translation cache cleared")
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Translation cache cleared."})
}
