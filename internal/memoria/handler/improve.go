package handler

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/memoria/internal/memoria/biz"
	"github.com/kart-io/memoria/internal/pkg/sse"
	"github.com/kart-io/memoria/pkg/errors"
	"github.com/kart-io/memoria/pkg/infra/pool"
	"github.com/kart-io/memoria/pkg/response"
	"github.com/kart-io/memoria/pkg/utils/json"
)

// AutoImprove 串行修复项目的全部章节并以 text/event-stream 推送进度。
// POST /api/v1/projects/:id/auto-improve
//
// 前置条件失败（项目不存在、没有诊断、没有章节、已有运行）在流开始前以普通 JSON 错误返回。
func (h *Handler) AutoImprove(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Param("id")

	release, err := h.locker.Acquire(ctx, projectID)
	if err != nil {
		if stderrors.Is(err, errors.ErrRunInProgress) {
			h.metrics.RunRejected()
		}
		response.FailWithError(c, err)
		return
	}

	run, err := h.svc.PrepareRun(ctx, owner(c), projectID)
	if err != nil {
		release()
		response.FailWithError(c, err)
		return
	}

	events := make(chan biz.Event, 16)
	if err := h.runs.Submit(func() { run.Execute(ctx, events) }); err != nil {
		release()
		if stderrors.Is(err, pool.ErrPoolOverload) {
			h.metrics.RunRejected()
			response.Fail(c, errors.ErrTooManyRequests.WithMessage("Too many improvement runs in progress"))
			return
		}
		response.FailWithError(c, err)
		return
	}
	// Execute 关闭 events 时运行已经结束，此后才能释放锁。
	defer release()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	log := logger.Global().WithCtx(ctx, "project_id", projectID)
	writable := true
	for ev := range events {
		if !writable {
			continue
		}
		if err := writeEvent(c, ev); err != nil {
			log.Warnw("event stream write failed", "error", err.Error())
			writable = false
		}
	}
}

func writeEvent(c *gin.Context, ev biz.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := sse.WriteData(c.Writer, b); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}
