package server

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muurk/espfw/internal/backend"
	"github.com/muurk/espfw/internal/logging"
	"github.com/muurk/espfw/internal/models"
	"github.com/muurk/espfw/internal/urls"
)

// abort writes {"message": msg} and stops the handler chain. The client
// surfaces the message field verbatim.
func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"message": msg})
}

// requestLogger logs every served request at info level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.LogHTTPRequest(c.ClientIP(), c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// routes builds the router. Firmware endpoints are public; device and
// project listings require a bearer token.
func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.MaxMultipartMemory = 8 << 20

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group(s.config.BasePath)
	api.POST(urls.Login, s.login)

	api.GET(urls.FirmwareList, s.listFirmwares)
	api.POST(urls.FirmwareUpload, s.uploadFirmware)
	api.GET("/firmware/download/:id", s.downloadFirmware)
	api.DELETE("/firmware/delete/:id", s.deleteFirmware)
	api.GET(urls.FirmwareEvents, s.hub.Serve)

	protected := api.Group("", s.tokens.Middleware())
	protected.GET(urls.Devices, s.listDevices)
	protected.GET(urls.Projects, s.listProjects)

	return r
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := s.store.UserByEmail(c.Request.Context(), req.Email)
	if err != nil || !user.CheckPassword(req.Password) {
		if err != nil && !errors.Is(err, ErrNotFound) {
			logging.Error("User lookup failed", zap.Error(err))
		}
		abort(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		logging.Error("Failed to sign token", zap.Error(err))
		abort(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	c.JSON(http.StatusOK, backend.LoginResponse{Token: token, User: user.Model()})
}

func (s *Server) listFirmwares(c *gin.Context) {
	records, err := s.store.Firmwares(c.Request.Context())
	if err != nil {
		logging.Error("Failed to list firmwares", zap.Error(err))
		abort(c, http.StatusInternalServerError, "Failed to fetch firmwares")
		return
	}
	out := make([]models.Firmware, len(records))
	for i := range records {
		out[i] = records[i].Model()
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) uploadFirmware(c *gin.Context) {
	ctx := c.Request.Context()

	file, err := c.FormFile("file")
	if err != nil {
		abort(c, http.StatusBadRequest, "No file uploaded")
		return
	}
	version := strings.TrimSpace(c.PostForm("version"))
	if version == "" {
		abort(c, http.StatusBadRequest, "Version is required")
		return
	}
	espID := strings.TrimSpace(c.PostForm("esp_id"))
	if espID != "" {
		known, err := s.store.DeviceExists(ctx, espID)
		if err != nil {
			logging.Error("Device lookup failed", zap.Error(err))
			abort(c, http.StatusInternalServerError, "Failed to upload firmware")
			return
		}
		if !known {
			abort(c, http.StatusBadRequest, "Unknown device")
			return
		}
	}
	exists, err := s.store.VersionExists(ctx, espID, version)
	if err != nil {
		logging.Error("Version lookup failed", zap.Error(err))
		abort(c, http.StatusInternalServerError, "Failed to upload firmware")
		return
	}
	if exists {
		abort(c, http.StatusConflict, "Version already exists")
		return
	}

	src, err := file.Open()
	if err != nil {
		abort(c, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	defer func() { _ = src.Close() }()

	fw := &Firmware{
		Version:          version,
		Description:      c.PostForm("description"),
		EspID:            espID,
		OriginalFileName: file.Filename,
		UploadedDate:     s.now().UTC(),
	}
	if err := s.store.CreateFirmware(ctx, fw, src); err != nil {
		logging.Error("Failed to store firmware", zap.Error(err))
		abort(c, http.StatusInternalServerError, "Failed to upload firmware")
		return
	}

	logging.Info("Firmware uploaded",
		zap.String("firmware_id", fw.ID),
		zap.String("version", fw.Version),
		zap.String("esp_id", fw.EspID),
		zap.Int64("size", fw.FileSize),
	)
	s.hub.Broadcast(backend.Event{Type: backend.EventUploaded, ID: fw.ID, EspID: fw.EspID})
	c.JSON(http.StatusCreated, gin.H{"message": "Firmware uploaded", "firmware": fw.Model()})
}

func (s *Server) downloadFirmware(c *gin.Context) {
	fw, err := s.store.Firmware(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.notFoundOrFail(c, err, "Failed to download firmware")
		return
	}
	path := s.store.Path(fw)
	if _, err := os.Stat(path); err != nil {
		abort(c, http.StatusNotFound, "Firmware file not found on disk")
		return
	}
	name := fw.OriginalFileName
	if name == "" {
		name = fw.FileName
	}
	c.FileAttachment(path, name)
}

func (s *Server) deleteFirmware(c *gin.Context) {
	fw, err := s.store.DeleteFirmware(c.Request.Context(), c.Param("id"))
	if err != nil && fw == nil {
		s.notFoundOrFail(c, err, "Failed to delete firmware")
		return
	}
	if err != nil {
		logging.Warn("Firmware record deleted but binary remains", zap.String("firmware_id", fw.ID), zap.Error(err))
	}
	logging.Info("Firmware deleted", zap.String("firmware_id", fw.ID))
	s.hub.Broadcast(backend.Event{Type: backend.EventDeleted, ID: fw.ID, EspID: fw.EspID})
	c.JSON(http.StatusOK, gin.H{"message": "Firmware deleted"})
}

func (s *Server) listDevices(c *gin.Context) {
	records, err := s.store.Devices(c.Request.Context())
	if err != nil {
		logging.Error("Failed to list devices", zap.Error(err))
		abort(c, http.StatusInternalServerError, "Failed to fetch devices")
		return
	}
	out := make([]models.Device, len(records))
	for i := range records {
		out[i] = records[i].Model()
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listProjects(c *gin.Context) {
	records, err := s.store.Projects(c.Request.Context())
	if err != nil {
		logging.Error("Failed to list projects", zap.Error(err))
		abort(c, http.StatusInternalServerError, "Failed to fetch projects")
		return
	}
	out := make([]models.Project, len(records))
	for i := range records {
		out[i] = records[i].Model()
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) notFoundOrFail(c *gin.Context, err error, msg string) {
	if errors.Is(err, ErrNotFound) {
		abort(c, http.StatusNotFound, "Firmware not found")
		return
	}
	logging.Error(msg, zap.Error(err))
	abort(c, http.StatusInternalServerError, msg)
}
