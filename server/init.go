package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/krau/konavision/config"
	"github.com/krau/konavision/service"
)

// Init builds the task registry from config.C() and loads every model once.
// Tasks whose model fails to load stay registered and answer 503.
func Init(ctx context.Context, loader service.Loader) (*service.Registry, error) {
	reg, err := service.NewRegistry(config.C(), loader)
	if err != nil {
		return nil, err
	}
	if err := reg.Setup(ctx); err != nil {
		slog.Warn("Some models are unavailable", slog.String("error", err.Error()))
	}
	return reg, nil
}

type Server struct {
	registry  *service.Registry
	maxUpload int64
}

func New(reg *service.Registry, maxUploadMB int) *Server {
	return &Server{registry: reg, maxUpload: int64(maxUploadMB) << 20}
}

// Router wires the task endpoints. Each accepts both "/task" and "/task/";
// POST runs the task and any other method gets the endpoint's banner.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors)
	r.MaxMultipartMemory = s.maxUpload

	for _, ep := range endpoints {
		for _, path := range []string{"/" + ep.kind.String(), "/" + ep.kind.String() + "/"} {
			r.POST(path, s.PredictHandler(ep.kind))
			for _, method := range bannerMethods {
				r.Handle(method, path, placeholder(ep.banner))
			}
		}
	}
	r.GET("/health", s.HealthHandler)
	return r
}

var endpoints = []struct {
	kind   service.TaskKind
	banner string
}{
	{service.Classify, "Classification Endpoint"},
	{service.Detect, "Detection Endpoint"},
	{service.Segment, "Segmentation Endpoint"},
}

// OPTIONS is left to cors.
var bannerMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodConnect,
	http.MethodTrace,
}

func cors(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusOK)
		return
	}
	c.Next()
}
