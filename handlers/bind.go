package handlers

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/gogotex/todo-api/internal/apperr"
)

func init() {
	// report json names in validation details
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// normalizer is implemented by request bodies that clean their fields up
// (trimming, case folding) before validation.
type normalizer interface {
	normalize()
}

// bindJSON decodes the body into obj, normalizes it and validates it with
// gin's validator. Any failure is a validation error.
func bindJSON(c *gin.Context, obj any) error {
	if err := json.NewDecoder(c.Request.Body).Decode(obj); err != nil {
		return apperr.Validation(err)
	}
	if n, ok := obj.(normalizer); ok {
		n.normalize()
	}
	if err := binding.Validator.ValidateStruct(obj); err != nil {
		return apperr.Validation(err)
	}
	return nil
}

// fail records err for the error middleware and stops the chain.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// pathID returns the trimmed :id parameter.
func pathID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}
