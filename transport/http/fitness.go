package http

import (
	"strconv"

	"github.com/fitgo/fit-go-core/logger"
	"github.com/fitgo/fit-go-core/middleware"
	"github.com/fitgo/fit-go-core/models"
	"github.com/fitgo/fit-go-core/principal"
	"github.com/fitgo/fit-go-core/response"
	"github.com/fitgo/fit-go-core/service"
	"github.com/fitgo/fit-go-core/worker"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
)

/* ========================================================================
 * Fitness Routes - 健身业务路由
 * ========================================================================
 * 职责: 将领域服务挂载到 HTTP 路由
 * 特性:
 *   - 归属实体（训练课/计划/动作）统一 CRUD 路由
 *   - 分类法实体统一管理路由（仅管理员可写）
 *   - 媒体处理回调路由（API Key 外部主体）
 *   - 主体从请求上下文提取，缺失即 401
 * ======================================================================== */

// FitnessRoutesParams 路由注册依赖
type FitnessRoutesParams struct {
	fx.In

	App *fiber.App
	Log *logger.Logger

	Workouts  *service.WorkoutService
	Routines  *service.RoutineService
	Exercises *service.ExerciseService
	Media     *worker.MediaPublisher

	Goals         *service.TaxonomyService[models.Goal]
	Levels        *service.TaxonomyService[models.Level]
	TrainingTypes *service.TaxonomyService[models.TrainingType]
	Modalities    *service.TaxonomyService[models.Modality]
	Hashtags      *service.TaxonomyService[models.Hashtag]
}

// RegisterFitnessRoutes 注册全部业务路由
func RegisterFitnessRoutes(p FitnessRoutesParams) {
	api := p.App.Group("/api/v1")

	registerOwnedRoutes[models.Workout](api.Group("/workouts"), p.Workouts.OwnedService,
		"title", "description", "level_id", "metadata")
	registerOwnedRoutes[models.Routine](api.Group("/routines"), p.Routines.OwnedService,
		"name", "description", "level_id", "week_count")
	registerOwnedRoutes[models.Exercise](api.Group("/exercises"), p.Exercises.OwnedService,
		"name", "muscle_group", "media_key")

	// 媒体处理: 投递到处理管道 / 外部系统通过 API Key 通道写入处理结果
	api.Post("/workouts/:id/media-submissions", mediaSubmitHandler(p.Workouts, p.Media))
	api.Patch("/workouts/:id/media-status", mediaStatusHandler(p.Workouts))

	// 计划编排: 整批替换计划内的训练课顺序
	api.Put("/routines/:id/workouts", arrangeWorkoutsHandler(p.Routines))
	api.Get("/routines/:id/workouts", routineWorkoutsHandler(p.Routines))

	registerTaxonomyRoutes(api.Group("/goals"), p.Goals, "name")
	registerTaxonomyRoutes(api.Group("/levels"), p.Levels, "name", "rank")
	registerTaxonomyRoutes(api.Group("/training-types"), p.TrainingTypes, "name")
	registerTaxonomyRoutes(api.Group("/modalities"), p.Modalities, "name")
	registerTaxonomyRoutes(api.Group("/hashtags"), p.Hashtags, "tag")

	p.Log.Info("fitness routes registered")
}

/* ========================================================================
 * 归属实体路由
 * ======================================================================== */

func registerOwnedRoutes[T any, PT service.Owned[T]](g fiber.Router, svc *service.OwnedService[T, PT], updatable ...string) {
	g.Post("/", func(c fiber.Ctx) error {
		pr, ok := requirePrincipal(c)
		if !ok {
			return nil
		}
		model := new(T)
		if err := c.Bind().Body(model); err != nil {
			return response.BadRequest(c, "invalid request body")
		}
		if err := svc.Create(c.Context(), pr, model); err != nil {
			return response.Error(c, err)
		}
		return response.OkWithData(c, model)
	})

	g.Get("/:id", func(c fiber.Ctx) error {
		pr, ok := requirePrincipal(c)
		if !ok {
			return nil
		}
		id, err := pathID(c)
		if err != nil {
			return response.BadRequest(c, "invalid id")
		}
		model, err := svc.GetByID(c.Context(), pr, id)
		if err != nil {
			return response.Error(c, err)
		}
		return response.OkWithData(c, model)
	})

	g.Get("/", func(c fiber.Ctx) error {
		pr, ok := requirePrincipal(c)
		if !ok {
			return nil
		}
		page, pageSize := pageQuery(c)

		// 管理员可通过 instructor_id 查询指定教练的数据
		if raw := c.Query("instructor_id"); raw != "" {
			instructorID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return response.BadRequest(c, "invalid instructor_id")
			}
			result, err := svc.ListForInstructor(c.Context(), pr, instructorID, page, pageSize)
			if err != nil {
				return response.Error(c, err)
			}
			return response.PageData(c, result.List, result.Total, result.Page, result.PageSize)
		}

		result, err := svc.List(c.Context(), pr, page, pageSize)
		if err != nil {
			return response.Error(c, err)
		}
		return response.PageData(c, result.List, result.Total, result.Page, result.PageSize)
	})

	g.Patch("/:id", func(c fiber.Ctx) error {
		pr, ok := requirePrincipal(c)
		if !ok {
			return nil
		}
		id, err := pathID(c)
		if err != nil {
			return response.BadRequest(c, "invalid id")
		}
		updates := map[string]any{}
		if err := c.Bind().Body(&updates); err != nil {
			return response.BadRequest(c, "invalid request body")
		}
		model, err := svc.Update(c.Context(), pr, id, updates, updatable...)
		if err != nil {
			return response.Error(c, err)
		}
		return response.OkWithData(c, model)
	})

	g.Delete("/:id", func(c fiber.Ctx) error {
		pr, ok := requirePrincipal(c)
		if !ok {
			return nil
		}
		id, err := pathID(c)
		if err != nil {
			return response.BadRequest(c, "invalid id")
		}
		if err := svc.Delete(c.Context(), pr, id); err != nil {
			return response.Error(c, err)
		}
		return response.Ok(c)
	})
}

// mediaStatusRequest 媒体回调请求体
type mediaStatusRequest struct {
	Status string `json:"status"`
}

func mediaStatusHandler(svc *service.WorkoutService) fiber.Handler {
	return func(c fiber.Ctx) error {
		pr, ok := requirePrincipal(c)
		if !ok {
			return nil
		}
		id, err := pathID(c)
		if err != nil {
			return response.BadRequest(c, "invalid id")
		}
		var req mediaStatusRequest
		if err := c.Bind().Body(&req); err != nil {
			return response.BadRequest(c, "invalid request body")
		}
		model, err := svc.UpdateMediaStatus(c.Context(), pr, id, models.MediaStatus(req.Status))
		if err != nil {
			return response.Error(c, err)
		}
		return response.OkWithData(c, model)
	}
}

// arrangeWorkoutsRequest 计划编排请求体
type arrangeWorkoutsRequest struct {
	WorkoutIDs []int64 `json:"workout_ids"`
}

func arrangeWorkoutsHandler(svc *service.RoutineService) fiber.Handler {
	return func(c fiber.Ctx) error {
		pr, ok := requirePrincipal(c)
		if !ok {
			return nil
		}
		id, err := pathID(c)
		if err != nil {
			return response.BadRequest(c, "invalid id")
		}
		var req arrangeWorkoutsRequest
		if err := c.Bind().Body(&req); err != nil {
			return response.BadRequest(c, "invalid request body")
		}
		if err := svc.ArrangeWorkouts(c.Context(), pr, id, req.WorkoutIDs); err != nil {
			return response.Error(c, err)
		}
		return response.Ok(c)
	}
}

// mediaSubmitHandler 将训练课媒体提交到异步处理管道
// 归属校验复用领域服务: 非本人且非管理员拿不到实体
func mediaSubmitHandler(svc *service.WorkoutService, pub *worker.MediaPublisher) fiber.Handler {
	return func(c fiber.Ctx) error {
		pr, ok := requirePrincipal(c)
		if !ok {
			return nil
		}
		id, err := pathID(c)
		if err != nil {
			return response.BadRequest(c, "invalid id")
		}
		workout, err := svc.GetByID(c.Context(), pr, id)
		if err != nil {
			return response.Error(c, err)
		}
		msgID, err := pub.Submit(c.Context(), workout)
		if err != nil {
			return response.Error(c, err)
		}
		return response.OkWithData(c, fiber.Map{"message_id": msgID})
	}
}

func routineWorkoutsHandler(svc *service.RoutineService) fiber.Handler {
	return func(c fiber.Ctx) error {
		pr, ok := requirePrincipal(c)
		if !ok {
			return nil
		}
		id, err := pathID(c)
		if err != nil {
			return response.BadRequest(c, "invalid id")
		}
		workouts, err := svc.Workouts(c.Context(), pr, id)
		if err != nil {
			return response.Error(c, err)
		}
		return response.OkWithData(c, workouts)
	}
}

/* ========================================================================
 * 分类法路由
 * ======================================================================== */

func registerTaxonomyRoutes[T any](g fiber.Router, svc *service.TaxonomyService[T], updatable ...string) {
	g.Post("/", func(c fiber.Ctx) error {
		pr, ok := requirePrincipal(c)
		if !ok {
			return nil
		}
		model := new(T)
		if err := c.Bind().Body(model); err != nil {
			return response.BadRequest(c, "invalid request body")
		}
		if err := svc.Create(c.Context(), pr, model); err != nil {
			return response.Error(c, err)
		}
		return response.OkWithData(c, model)
	})

	g.Get("/:id", func(c fiber.Ctx) error {
		pr, ok := requirePrincipal(c)
		if !ok {
			return nil
		}
		id, err := pathID(c)
		if err != nil {
			return response.BadRequest(c, "invalid id")
		}
		model, err := svc.GetByID(c.Context(), pr, id)
		if err != nil {
			return response.Error(c, err)
		}
		return response.OkWithData(c, model)
	})

	g.Get("/", func(c fiber.Ctx) error {
		pr, ok := requirePrincipal(c)
		if !ok {
			return nil
		}
		list, err := svc.List(c.Context(), pr)
		if err != nil {
			return response.Error(c, err)
		}
		return response.OkWithData(c, list)
	})

	g.Get("/:id/deletable", func(c fiber.Ctx) error {
		pr, ok := requirePrincipal(c)
		if !ok {
			return nil
		}
		id, err := pathID(c)
		if err != nil {
			return response.BadRequest(c, "invalid id")
		}
		deletable, err := svc.CanDelete(c.Context(), pr, id)
		if err != nil {
			return response.Error(c, err)
		}
		return response.OkWithData(c, fiber.Map{"deletable": deletable})
	})

	g.Patch("/:id", func(c fiber.Ctx) error {
		pr, ok := requirePrincipal(c)
		if !ok {
			return nil
		}
		id, err := pathID(c)
		if err != nil {
			return response.BadRequest(c, "invalid id")
		}
		updates := map[string]any{}
		if err := c.Bind().Body(&updates); err != nil {
			return response.BadRequest(c, "invalid request body")
		}
		if err := svc.Update(c.Context(), pr, id, updates, updatable...); err != nil {
			return response.Error(c, err)
		}
		return response.Ok(c)
	})

	g.Delete("/:id", func(c fiber.Ctx) error {
		pr, ok := requirePrincipal(c)
		if !ok {
			return nil
		}
		id, err := pathID(c)
		if err != nil {
			return response.BadRequest(c, "invalid id")
		}
		if err := svc.Delete(c.Context(), pr, id); err != nil {
			return response.Error(c, err)
		}
		return response.Ok(c)
	})
}

/* ========================================================================
 * 请求解析辅助
 * ======================================================================== */

// requirePrincipal 提取请求主体，缺失时直接写出 401
func requirePrincipal(c fiber.Ctx) (principal.Principal, bool) {
	pr, ok := middleware.PrincipalFromFiber(c)
	if !ok {
		_ = response.Unauthorized(c, "missing principal")
		return principal.Principal{}, false
	}
	return pr, true
}

func pathID(c fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

func pageQuery(c fiber.Ctx) (int, int) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.Query("page_size", "20"))
	if err != nil || pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}
	return page, pageSize
}
