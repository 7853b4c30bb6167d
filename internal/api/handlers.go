package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"framesearch/internal/domain"
)

const msgUnsupportedModel = "Model type not supported"

type textRequest struct {
	ModelType string `json:"model_type"`
	Text      string `json:"text"`
}

type eventRequest struct {
	ModelType string   `json:"model_type"`
	ListEvent []string `json:"list_event"`
}

type multiModalRequest struct {
	ModelType string          `json:"model_type"`
	Text      string          `json:"text"`
	ListOCR   []domain.Hit    `json:"list_ocr"`
	ListASR   []domain.Hit    `json:"list_asr"`
	Priority  []domain.Source `json:"priority"`
}

type listResponse struct {
	Data []domain.FrameRecord `json:"data"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleTextRetrieval(c *gin.Context) {
	var req textRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.retriever.RetrieveByText(c.Request.Context(), domain.TextQuery{
		Backend: domain.Backend(req.ModelType),
		Text:    req.Text,
	})
	s.respond(c, res, err)
}

func (s *Server) handleImageRetrieval(c *gin.Context) {
	image, err := readUpload(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Detail: "Image is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "Image is required"})
		return
	}

	res, err := s.retriever.RetrieveByImage(c.Request.Context(), domain.ImageQuery{
		Backend: domain.Backend(c.Query("model_type")),
		Image:   image,
	})
	s.respond(c, res, err)
}

func (s *Server) handleEventSearch(c *gin.Context) {
	var req eventRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.retriever.RetrieveByEventSequence(c.Request.Context(), domain.EventSequenceQuery{
		Backend: domain.Backend(req.ModelType),
		Events:  req.ListEvent,
	})
	s.respond(c, res, err)
}

func (s *Server) handleMultiModalSearch(c *gin.Context) {
	var req multiModalRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.retriever.RetrieveMultiModal(c.Request.Context(), domain.MultiModalQuery{
		Backend:  domain.Backend(req.ModelType),
		Text:     req.Text,
		OCR:      req.ListOCR,
		ASR:      req.ListASR,
		Priority: req.Priority,
	})
	s.respond(c, res, err)
}

func (s *Server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: err.Error()})
		return false
	}
	return true
}

// respond maps a retrieval outcome onto the wire: validation failures are
// 400, backend failures 500, and every business-empty result a 200.
func (s *Server) respond(c *gin.Context, res domain.Result, err error) {
	if err != nil {
		if domain.IsClientFault(err) {
			c.JSON(http.StatusBadRequest, errorResponse{Detail: err.Error()})
			return
		}
		s.logger.Error("retrieval failed",
			"request_id", c.GetString(requestIDKey),
			"path", c.FullPath(),
			"error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}

	if res.Status == domain.StatusUnsupportedBackend {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: msgUnsupportedModel})
		return
	}

	frames := res.Frames
	if frames == nil {
		frames = []domain.FrameRecord{}
	}
	c.JSON(http.StatusOK, listResponse{Data: frames})
}

func readUpload(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, err
	}

	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}
