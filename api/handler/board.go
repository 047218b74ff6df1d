package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/questboard/api/transport"
	"github.com/fastygo/questboard/domain"
	"github.com/fastygo/questboard/pkg/httpcontext"
)

// BoardReader serves copies of the committed snapshot.
type BoardReader interface {
	UserStats() (*domain.User, error)
	Tasks(filter domain.TaskFilter) ([]domain.Task, error)
	Task(id string) (*domain.Task, error)
	Tags() ([]domain.Tag, error)
	Party() (*domain.Party, error)
	Challenges() ([]domain.Challenge, error)
}

type BoardHandler struct {
	baseHandler
	board BoardReader
}

func NewBoardHandler(board BoardReader, adapter *httpcontext.Adapter, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{
		baseHandler: newBaseHandler(adapter, logger),
		board:       board,
	}
}

// @Summary User stats with derived attributes
// @Tags board
// @Router /api/v1/stats [get]
func (h *BoardHandler) GetStats(ctx *fasthttp.RequestCtx) {
	user, err := h.board.UserStats()
	h.reply(ctx, user, err)
}

// @Summary List tasks
// @Tags board
// @Router /api/v1/tasks [get]
func (h *BoardHandler) GetTasks(ctx *fasthttp.RequestCtx) {
	filter, err := transport.ParseTaskQuery(ctx.QueryArgs()).Filter()
	if err != nil {
		h.reply(ctx, nil, err)
		return
	}
	tasks, err := h.board.Tasks(filter)
	h.replyList(ctx, tasks, len(tasks), err)
}

// @Summary Get one task
// @Tags board
// @Router /api/v1/tasks/{id} [get]
func (h *BoardHandler) GetTask(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)
	task, err := h.board.Task(id)
	h.reply(ctx, task, err)
}

// @Summary List tags
// @Tags board
// @Router /api/v1/tags [get]
func (h *BoardHandler) GetTags(ctx *fasthttp.RequestCtx) {
	tags, err := h.board.Tags()
	h.replyList(ctx, tags, len(tags), err)
}

// @Summary Party and quest progress
// @Tags board
// @Router /api/v1/party [get]
func (h *BoardHandler) GetParty(ctx *fasthttp.RequestCtx) {
	party, err := h.board.Party()
	if err == nil && party == nil {
		h.respondError(ctx, domain.NewError(domain.ErrCodeNotFound, "not in a party"))
		return
	}
	h.reply(ctx, party, err)
}

// @Summary Joined challenges
// @Tags board
// @Router /api/v1/challenges [get]
func (h *BoardHandler) GetChallenges(ctx *fasthttp.RequestCtx) {
	challenges, err := h.board.Challenges()
	h.replyList(ctx, challenges, len(challenges), err)
}

func (h *BoardHandler) reply(ctx *fasthttp.RequestCtx, data interface{}, err error) {
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, data)
}

func (h *BoardHandler) replyList(ctx *fasthttp.RequestCtx, data interface{}, count int, err error) {
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewList(data, count))
}
