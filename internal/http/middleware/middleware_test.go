package middleware_test

import (
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/copilot-survey/common/logger"
	"basegraph.app/copilot-survey/internal/http/middleware"
)

func serve(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	req.Header.Set("X-GitHub-Delivery", "d-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var _ = Describe("RateLimit", func() {
	It("limits each client IP independently", func() {
		router := gin.New()
		router.Use(middleware.RateLimit(0.001, 2))
		router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

		Expect(serve(router, "10.0.0.1:1000").Code).To(Equal(http.StatusNoContent))
		Expect(serve(router, "10.0.0.1:1000").Code).To(Equal(http.StatusNoContent))
		Expect(serve(router, "10.0.0.1:1000").Code).To(Equal(http.StatusTooManyRequests))

		Expect(serve(router, "10.0.0.2:1000").Code).To(Equal(http.StatusNoContent))
	})

	It("is disabled with a non-positive rate", func() {
		router := gin.New()
		router.Use(middleware.RateLimit(0, 0))
		router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

		for i := 0; i < 5; i++ {
			Expect(serve(router, "10.0.0.1:1000").Code).To(Equal(http.StatusNoContent))
		}
	})
})

var _ = Describe("Recovery", func() {
	It("turns panics into 500s", func() {
		router := gin.New()
		router.Use(middleware.Recovery())
		router.GET("/ping", func(c *gin.Context) { panic("boom") })

		w := serve(router, "10.0.0.1:1000")
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).To(ContainSubstring("internal server error"))
	})
})

var _ = Describe("Logger", func() {
	It("adds delivery fields to the request context", func() {
		var fields logger.LogFields
		router := gin.New()
		router.Use(middleware.Logger())
		router.GET("/ping", func(c *gin.Context) {
			fields = logger.GetLogFields(c.Request.Context())
			c.Status(http.StatusNoContent)
		})

		serve(router, "10.0.0.1:1000")
		Expect(fields.DeliveryID).NotTo(BeNil())
		Expect(*fields.DeliveryID).To(Equal("d-1"))
		Expect(fields.Component).To(Equal("survey.http"))
	})
})
