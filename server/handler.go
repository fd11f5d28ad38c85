package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/krau/konavision/service"
)

const maskHeader = "data:image/png;base64"

var (
	errNoImage  = errors.New("no image provided, use the 'image' file field or the 'data' form field")
	errTooLarge = errors.New("request body too large")
)

func placeholder(text string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, text)
	}
}

func (s *Server) PredictHandler(kind service.TaskKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		img, err := s.readImage(c)
		if err != nil {
			fail(c, kind, err)
			return
		}

		res, err := s.registry.Infer(c.Request.Context(), kind, img)
		if err != nil {
			fail(c, kind, err)
			return
		}

		body, err := render(res)
		if err != nil {
			fail(c, kind, err)
			return
		}
		c.JSON(http.StatusOK, body)
	}
}

func (s *Server) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "tasks": s.registry.Status()})
}

// readImage takes the image from the "data" form field, a JSON object whose
// imageData is a data URL, or else from the "image" file upload.
func (s *Server) readImage(c *gin.Context) (*service.Image, error) {
	if err := s.parseForm(c); err != nil {
		return nil, err
	}

	if data := c.PostForm("data"); data != "" {
		var payload struct {
			ImageData string `json:"imageData"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return nil, fmt.Errorf("%w: data field: %w", service.ErrDecode, err)
		}
		if payload.ImageData == "" {
			return nil, fmt.Errorf("%w: data field has no imageData", service.ErrDecode)
		}
		_, img, err := service.DecodeDataURL(payload.ImageData)
		return img, err
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrDecode, errNoImage)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrDecode, err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrDecode, err)
	}
	return service.DecodeBytes(raw)
}

// parseForm reads the body under the max_upload_mb cap before any field is
// looked up, so an oversized body is reported as such rather than as a
// missing field.
func (s *Server) parseForm(c *gin.Context) error {
	if c.Request.ContentLength > s.maxUpload {
		return fmt.Errorf("%w: %d bytes, limit is %d", errTooLarge, c.Request.ContentLength, s.maxUpload)
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	var err error
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		err = c.Request.ParseMultipartForm(s.maxUpload)
	} else {
		err = c.Request.ParseForm()
	}
	if err == nil {
		return nil
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: limit is %d bytes", errTooLarge, maxErr.Limit)
	}
	return fmt.Errorf("%w: %w", service.ErrDecode, err)
}

func render(res service.Result) (gin.H, error) {
	switch r := res.(type) {
	case service.ClassifyResult:
		return gin.H{"label": r.Label}, nil
	case service.DetectResult:
		return gin.H{
			"label": r.Label,
			"x1":    strconv.Itoa(r.Box.X1),
			"y1":    strconv.Itoa(r.Box.Y1),
			"x2":    strconv.Itoa(r.Box.X2),
			"y2":    strconv.Itoa(r.Box.Y2),
		}, nil
	case service.SegmentResult:
		data, err := service.EncodeDataURL(maskHeader, r.Mask)
		if err != nil {
			return nil, err
		}
		return gin.H{"labels": listString(r.Labels), "imageData": data}, nil
	default:
		return nil, fmt.Errorf("unexpected result %T", res)
	}
}

// listString formats labels the way the web client expects: ['A', 'B'].
func listString(labels []string) string {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		if strings.Contains(l, "'") && !strings.Contains(l, `"`) {
			quoted[i] = `"` + l + `"`
		} else {
			quoted[i] = "'" + strings.ReplaceAll(l, "'", `\'`) + "'"
		}
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func status(err error) int {
	switch {
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge
	case service.ClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, service.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, kind service.TaskKind, err error) {
	code := status(err)
	if code >= http.StatusInternalServerError {
		slog.Error("Prediction failed", slog.String("task", kind.String()), slog.String("error", err.Error()))
	} else {
		slog.Debug("Rejected request", slog.String("task", kind.String()), slog.String("error", err.Error()))
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
