package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"caixa/internal/apierror"
	"caixa/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

func init() {
	// Report fields by their wire name rather than the Go field name.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
}

// bindAndValidate binds the body (JSON or form, by Content-Type) and runs
// go-playground/validator tags. Returns false after writing the error
// response; the caller must return without writing another one.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	return validated(c, req, c.ShouldBind(req))
}

func bindQueryAndValidate(c *gin.Context, req interface{}) bool {
	return validated(c, req, c.ShouldBindQuery(req))
}

func validated(c *gin.Context, req interface{}, bindErr error) bool {
	if bindErr != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(bindErr, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, apierror.New("request body too large"))
			return false
		}
		c.JSON(http.StatusBadRequest, apierror.New("invalid request: "+bindErr.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			respondError(c, err)
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// respondError writes the envelope of a domain error. Anything outside the
// domain taxonomy is logged and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	status, body, ok := apierror.FromError(err)
	if !ok {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Msg("request failed")
	}
	c.JSON(status, body)
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apierror.New(name+" must be a positive integer"))
		return 0, false
	}
	return id, true
}
