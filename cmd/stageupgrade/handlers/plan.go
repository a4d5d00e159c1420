package handlers

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dcshock/stageupgrade/config"
	"github.com/dcshock/stageupgrade/upgrader"
)

// Plan actions.
const (
	actionCurrent      = "current"
	actionUpgrade      = "upgrade"
	actionNotSupported = "not-implemented"
	actionNewer        = "newer"
	actionUnknown      = "unregistered"
)

type planRow struct {
	Instance string
	Type     config.StageType
	From     int
	To       int
	Action   string
}

// Plan prints, per stage of the record, the upgrade that the upgrade
// command would attempt. Nothing is upgraded.
func Plan(ctx context.Context, out io.Writer, definitionsPath, recordPath string) error {
	reg, err := loadRegistry(ctx, definitionsPath)
	if err != nil {
		return err
	}
	rec, err := loadRecord(recordPath)
	if err != nil {
		return err
	}
	return renderPlan(out, planRecord(reg, rec))
}

func planRecord(reg *config.Registry, rec *config.PipelineRecord) []planRow {
	rows := make([]planRow, 0, len(rec.Stages))
	for _, st := range rec.Stages {
		b, ok := reg.Lookup(st.Library, st.Stage)
		row := planRow{Instance: st.Instance, Type: st.Type(), From: st.Version, To: b.CurrentVersion}
		switch {
		case !ok:
			row.Action, row.To = actionUnknown, st.Version
		case st.Version == b.CurrentVersion:
			row.Action = actionCurrent
		case st.Version > b.CurrentVersion:
			row.Action = actionNewer
		case upgrader.IsDefault(b.Upgrader):
			row.Action = actionNotSupported
		default:
			row.Action = actionUpgrade
		}
		rows = append(rows, row)
	}
	return rows
}

func renderPlan(out io.Writer, rows []planRow) error {
	tw := tabwriter.NewWriter(out, 0, 1, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTANCE\tSTAGE\tFROM\tTO\tACTION")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.Instance, r.Type, r.From, r.To, r.Action)
	}
	return tw.Flush()
}
