package response

import (
	"net/http"

	"github.com/fitgo/fit-go-core/errors"

	"github.com/gofiber/fiber/v3"
)

/* ========================================================================
 * Response - 统一响应处理
 * ========================================================================
 * 职责: 业务层结果到 HTTP JSON 响应的统一出口
 * 规则:
 *   - 业务错误码随 BizError 透出，HTTP 状态码由错误码映射
 *   - Data 永不为 null，空数据序列化为空对象
 * ======================================================================== */

func write(c fiber.Ctx, status int, code int, msg string, data interface{}) error {
	if data == nil {
		// data == nil 时 JSON 序列化为 null，统一兜成空对象
		data = &struct{}{}
	}
	return c.Status(status).JSON(&Result{Code: code, Msg: msg, Data: data})
}

// Ok 返回成功响应
func Ok(c fiber.Ctx) error {
	return write(c, http.StatusOK, http.StatusOK, "ok", nil)
}

// OkWithData 返回成功响应（带数据）
func OkWithData(c fiber.Ctx, data interface{}) error {
	return write(c, http.StatusOK, http.StatusOK, "ok", data)
}

// PageData 返回分页数据
// total 是过滤后的总数，总页数由其推导
func PageData(c fiber.Ctx, list interface{}, total int64, page, pageSize int) error {
	var pages int64
	if pageSize > 0 {
		pages = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return OkWithData(c, &PageResult{
		List:     list,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    pages,
	})
}

// Error 返回错误响应
// BizError 用自带的业务码和映射状态码，其余错误按 500 处理
func Error(c fiber.Ctx, err error) error {
	if err == nil {
		return Ok(c)
	}
	if bizErr, ok := errors.AsBizError(err); ok {
		status, _ := errors.ToHTTPResponse(bizErr)
		return write(c, status, int(bizErr.Code), bizErr.Message, nil)
	}
	return write(c, http.StatusInternalServerError, http.StatusInternalServerError, err.Error(), nil)
}

// ErrorWithCode 返回错误响应（指定 HTTP 状态码）
// 中间件在业务错误码之外直接表达 HTTP 语义时使用（如 429）
func ErrorWithCode(c fiber.Ctx, status int, err error) error {
	if err == nil {
		return write(c, status, status, "ok", nil)
	}
	if bizErr, ok := errors.AsBizError(err); ok {
		return write(c, status, int(bizErr.Code), bizErr.Message, nil)
	}
	return write(c, status, status, err.Error(), nil)
}

// BadRequest 返回 400 错误
func BadRequest(c fiber.Ctx, msg string) error {
	return write(c, http.StatusBadRequest, http.StatusBadRequest, msg, nil)
}

// Unauthorized 返回 401 错误
func Unauthorized(c fiber.Ctx, msg string) error {
	return write(c, http.StatusUnauthorized, http.StatusUnauthorized, msg, nil)
}
