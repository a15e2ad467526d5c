package response

import "github.com/gin-gonic/gin"

const (
	CodeOK              = 0
	CodeBadRequest      = 40000
	CodeUnauthorized    = 40100
	CodeSessionNotFound = 40401
	CodeSessionBusy     = 40900
	CodeRateLimited     = 42900
	CodeInternalServer  = 50000
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

func RateLimited(c *gin.Context, retryAfterSeconds int) {
	c.JSON(429, APIResponse{
		Code:    CodeRateLimited,
		Message: "too many requests, please slow down",
		Data:    gin.H{"retry_after_seconds": retryAfterSeconds},
	})
}
