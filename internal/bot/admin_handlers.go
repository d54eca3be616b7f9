package bot

import (
	"errors"
	"strings"

	"github.com/m3rciful/pointshop/core/telegram/format"
	tghelpers "github.com/m3rciful/pointshop/core/telegram/helpers"
	"github.com/m3rciful/pointshop/internal/domain"

	tele "gopkg.in/telebot.v4"
)

const reconcileListLimit = 20

func (h *Handlers) onHelp(c tele.Context) error {
	if h.reg == nil {
		return nil
	}
	return tghelpers.SendMDV2(c, helpText(h.reg.ListCommands(true)))
}

func (h *Handlers) onReconcile(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	recs, err := h.recs.ListOpen(ctx, reconcileListLimit)
	if err != nil {
		return h.fail(ctx, c, "reconcile.list", err)
	}
	return send(c, reconciliationText(recs), nil)
}

func (h *Handlers) onResolve(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	args := c.Args()
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return send(c, format.MDV2("Usage: /resolve <id>"), nil)
	}
	id := strings.TrimSpace(args[0])
	err := h.recs.Resolve(ctx, id, h.now())
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return send(c, format.MDV2("No open record ")+format.Code(id), nil)
	case err != nil:
		return h.fail(ctx, c, "reconcile.resolve", err)
	}
	return send(c, format.MDV2("Record ")+format.Code(id)+format.MDV2(" resolved."), nil)
}
