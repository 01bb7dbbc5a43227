package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/terminology"
)

// ErrorInfo is the body of every error response.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response wraps non-validation payloads.
type Response struct {
	Data    any        `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Response{Error: &ErrorInfo{Code: code, Message: err.Error()}})
}

type validateQuery struct {
	CheckFutureDates    *bool `form:"checkFutureDates"`
	CheckNegativeValues *bool `form:"checkNegativeValues"`
}

func (s *Server) requestSettings(c *gin.Context) (tv.Settings, error) {
	var q validateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return nil, err
	}
	settings := s.settings
	if q.CheckFutureDates != nil {
		settings = settings.With(tv.SettingCheckFutureDates, *q.CheckFutureDates)
	}
	if q.CheckNegativeValues != nil {
		settings = settings.With(tv.SettingCheckNegativeValues, *q.CheckNegativeValues)
	}
	return settings, nil
}

// validate handles POST /v1/validate. The document is either the raw
// request body or a multipart "file" field. Findings are part of a 200
// response; only unusable requests get an error status.
func (s *Server) validate(c *gin.Context) {
	settings, err := s.requestSettings(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", err)
		return
	}

	ctx := c.Request.Context()
	threshold := s.validator.Options().LargeFileThreshold

	if isMultipart(c) {
		fh, err := c.FormFile("file")
		if err != nil {
			respondError(c, http.StatusBadRequest, "MISSING_FILE", err)
			return
		}
		f, err := fh.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "UNREADABLE_FILE", err)
			return
		}
		defer f.Close()

		var result *tv.Result
		if fh.Size > threshold {
			result = s.validator.ValidateReader(ctx, f, fh.Size, settings, nil)
		} else {
			data, err := io.ReadAll(f)
			if err != nil {
				respondError(c, http.StatusBadRequest, "UNREADABLE_FILE", err)
				return
			}
			result = s.validator.ValidateBytes(ctx, data, settings)
		}
		c.JSON(http.StatusOK, result)
		return
	}

	if c.Request.ContentLength > threshold {
		c.JSON(http.StatusOK, s.validator.ValidateReader(ctx, c.Request.Body, c.Request.ContentLength, settings, nil))
		return
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", err)
			return
		}
		respondError(c, http.StatusBadRequest, "UNREADABLE_BODY", err)
		return
	}
	if len(data) == 0 {
		respondError(c, http.StatusBadRequest, "EMPTY_BODY", errors.New("request body is empty"))
		return
	}
	c.JSON(http.StatusOK, s.validator.ValidateBytes(ctx, data, settings))
}

// importTable handles POST /v1/tuss/import. The table is CSV unless the
// request is JSON, by content type, ?format=json or a .json upload.
func (s *Server) importTable(c *gin.Context) {
	store := s.validator.Store()
	if store == nil {
		respondError(c, http.StatusServiceUnavailable, "NO_STORE", errors.New("no reference table configured"))
		return
	}

	body := c.Request.Body
	name := ""
	if isMultipart(c) {
		fh, err := c.FormFile("file")
		if err != nil {
			respondError(c, http.StatusBadRequest, "MISSING_FILE", err)
			return
		}
		f, err := fh.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "UNREADABLE_FILE", err)
			return
		}
		defer f.Close()
		body, name = f, fh.Filename
	}

	var (
		entries []terminology.Entry
		err     error
	)
	if isJSONImport(c, name) {
		entries, err = terminology.ReadJSON(body)
	} else {
		entries, err = terminology.ReadCSV(body)
	}
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_TABLE", err)
		return
	}

	n, err := store.BulkReplace(c.Request.Context(), entries)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "IMPORT_FAILED", err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Data:    gin.H{"imported": n},
		Message: fmt.Sprintf("%d códigos importados.", n),
	})
}

// countTable handles GET /v1/tuss/count.
func (s *Server) countTable(c *gin.Context) {
	store := s.validator.Store()
	if store == nil {
		respondError(c, http.StatusServiceUnavailable, "NO_STORE", errors.New("no reference table configured"))
		return
	}
	n, err := store.Count(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "COUNT_FAILED", err)
		return
	}
	c.JSON(http.StatusOK, Response{Data: gin.H{"count": n}})
}

// selfTest handles GET /v1/selftest.
func (s *Server) selfTest(c *gin.Context) {
	report := s.validator.SelfTest(c.Request.Context())
	status := http.StatusOK
	if !report.OK() {
		status = http.StatusInternalServerError
	}
	c.JSON(status, Response{Data: report})
}

// health handles GET /healthz.
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func isMultipart(c *gin.Context) bool {
	mt, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	return mt == "multipart/form-data"
}

func isJSONImport(c *gin.Context, filename string) bool {
	if strings.EqualFold(c.Query("format"), "json") {
		return true
	}
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		return true
	}
	mt, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	return mt == "application/json"
}
