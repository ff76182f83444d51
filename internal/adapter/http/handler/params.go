package handler

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"nft-marketplace/internal/adapter/http/middleware"
	"nft-marketplace/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// idParam parses a positive uint64 path parameter. Zero and malformed ids
// read as not found since id 0 is never allocated.
func idParam(c *gin.Context, name, entity string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.ErrNotFound(entity)
	}
	return id, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if !strings.HasPrefix(s, "0x") || !common.IsHexAddress(s) {
		return common.Address{}, apperror.Validation(field + " must be a 0x-prefixed address")
	}
	return common.HexToAddress(s), nil
}

func optionalAddress(c *gin.Context, key string) (*common.Address, error) {
	s := c.Query(key)
	if s == "" {
		return nil, nil
	}
	addr, err := parseAddress(key, s)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// pageParams reads page and page_size, falling back to defaults on bad input.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

// caller returns the signed-in address, or AUTH_003 outside JWTAuth.
func caller(c *gin.Context) (common.Address, error) {
	addr, ok := middleware.CallerAddress(c)
	if !ok {
		return common.Address{}, apperror.ErrInvalidToken()
	}
	return addr, nil
}

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
