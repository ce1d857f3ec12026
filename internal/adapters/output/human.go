package output

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"github.com/mikey-austin/tsmusic/internal/core"
	"github.com/mikey-austin/tsmusic/internal/media"
	"github.com/mikey-austin/tsmusic/pkg/tsm"
)

// HumanPrinter prints human-readable output.
type HumanPrinter struct {
	Out io.Writer
}

// Print renders human output.
func (p HumanPrinter) Print(v any) error {
	w := writerOr(p.Out)
	switch data := v.(type) {
	case core.NodesResult:
		return printNodes(w, data)
	case core.StatusResult:
		return printStatus(w, data)
	case core.QueueResult:
		return printQueue(w, data)
	case core.AddResult:
		_, err := fmt.Fprintf(w, "queued %s\n", describeTrack(data.Track))
		return err
	case core.VolumeResult:
		_, err := fmt.Fprintf(w, "volume %d%%\n", data.Volume)
		return err
	case core.ClearResult:
		_, err := fmt.Fprintf(w, "cleared %d track(s)\n", data.Removed)
		return err
	case core.EventResult:
		return printEvent(w, data)
	default:
		_, err := fmt.Fprintln(w, "ok")
		return err
	}
}

func printNodes(w io.Writer, result core.NodesResult) error {
	data := pterm.TableData{{"NAME", "KIND", "NODE_ID"}}
	for _, node := range result.Nodes {
		data = append(data, []string{node.Name, node.Kind, node.NodeID})
	}
	return renderTable(w, data)
}

func printStatus(w io.Writer, result core.StatusResult) error {
	state := result.State
	current := "-"
	if state.Current != nil {
		current = describeTrack(*state.Current)
	}
	data := pterm.TableData{
		{"BOT", fmt.Sprintf("%s (%s)", result.Bot.Name, result.Bot.NodeID)},
		{"STATUS", state.Status},
		{"VOLUME", strconv.Itoa(state.Volume) + "%"},
		{"NOW", current},
		{"QUEUE", strconv.Itoa(state.QueueLength)},
	}
	return renderTable(w, data)
}

func printQueue(w io.Writer, result core.QueueResult) error {
	if result.Queue.Current != nil {
		if _, err := fmt.Fprintf(w, "now playing: %s\n", describeTrack(*result.Queue.Current)); err != nil {
			return err
		}
	}
	if len(result.Queue.Entries) == 0 {
		_, err := fmt.Fprintln(w, "queue is empty")
		return err
	}
	data := pterm.TableData{{"#", "TITLE", "DURATION", "REQUESTER"}}
	for i, entry := range result.Queue.Entries {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			entry.Title,
			media.FormatDuration(entry.Duration),
			entry.Requester,
		})
	}
	return renderTable(w, data)
}

func printEvent(w io.Writer, result core.EventResult) error {
	evt := result.Event
	ts := time.Unix(evt.TS, 0).Format(time.TimeOnly)
	line := fmt.Sprintf("%s %s", ts, evt.Type)
	if evt.Track != nil {
		line += " " + describeTrack(*evt.Track)
	}
	if evt.Error != "" {
		line += ": " + evt.Error
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func describeTrack(track tsm.TrackInfo) string {
	if track.Duration > 0 {
		return fmt.Sprintf("%s [%s]", track.Title, media.FormatDuration(track.Duration))
	}
	return track.Title
}

func renderTable(w io.Writer, data pterm.TableData) error {
	out, err := pterm.DefaultTable.WithHasHeader(true).WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
