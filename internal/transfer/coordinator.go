package transfer

import (
	"context"
	"io"

	"github.com/schoolroster/roster-client/internal/api"
	"github.com/schoolroster/roster-client/internal/constants"
	"github.com/schoolroster/roster-client/internal/logging"
	"github.com/schoolroster/roster-client/internal/notify"
	"github.com/schoolroster/roster-client/internal/progress"
	"github.com/schoolroster/roster-client/internal/validation"
)

// Notice text
const (
	MessageImporting      = "Importing..."
	MessageImported       = "Students imported successfully"
	MessageImportFailed   = "Failed to import CSV file"
	MessageSelectFile     = "Please select a CSV file to import"
	MessageExportFailed   = "Failed to export students"
	MessageExportSaveFail = "Failed to save the exported file"
)

// BulkGateway is the part of the API client the coordinator calls.
type BulkGateway interface {
	ImportCSV(ctx context.Context, src io.Reader, filename string) (string, error)
	ExportCSV(ctx context.Context) ([]byte, error)
}

// Reloader refreshes the displayed list. *state.StudentListState implements it.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Notices shows user-facing messages. *notify.Board implements it.
type Notices interface {
	Info(message string) notify.Notice
	Success(message string) notify.Notice
	Error(message string) notify.Notice
}

// ProgressFactory creates a reporter for one run.
type ProgressFactory func(taskType TaskType, name string) progress.Reporter

// Coordinator runs imports and exports. No operation is retried.
type Coordinator struct {
	gateway  BulkGateway
	list     Reloader
	notices  Notices
	saver    FileSaver
	journal  *Journal
	progress ProgressFactory
	logger   *logging.Logger
}

// NewCoordinator wires a coordinator. list may be nil (nothing to refresh);
// journal may be nil (a private one is used).
func NewCoordinator(gateway BulkGateway, list Reloader, notices Notices, saver FileSaver, journal *Journal, logger *logging.Logger) *Coordinator {
	if journal == nil {
		journal = NewJournal(nil)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Coordinator{
		gateway: gateway,
		list:    list,
		notices: notices,
		saver:   saver,
		journal: journal,
		progress: func(TaskType, string) progress.Reporter {
			return progress.NewNoOpProgress()
		},
		logger: logger,
	}
}

// SetProgressFactory replaces the per-run progress reporter.
func (c *Coordinator) SetProgressFactory(f ProgressFactory) {
	if f != nil {
		c.progress = f
	}
}

// Journal returns the task journal.
func (c *Coordinator) Journal() *Journal {
	return c.journal
}

// ImportFile uploads a CSV. An empty selection is rejected without a request.
// On success the list is reloaded and a transient notice shows the backend's
// confirmation; on failure a persistent notice shows the backend's reason.
func (c *Coordinator) ImportFile(ctx context.Context, file *SelectedFile) (string, error) {
	if file == nil || file.Size == 0 {
		c.notices.Error(MessageSelectFile)
		return "", &validation.Error{Field: "file", Message: "is required"}
	}
	if err := validation.Filename(file.Name); err != nil {
		c.notices.Error(MessageSelectFile)
		return "", err
	}

	task := c.journal.Track(TaskImport, file.Name, file.Size)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.journal.SetCancel(task.ID, cancel)

	c.notices.Info(MessageImporting)
	reporter := c.progress(TaskImport, file.Name)

	fail := func(err error) (string, error) {
		reporter.Error(err)
		if api.IsCancelled(err) {
			c.journal.finish(task.ID, TaskCancelled, "", err)
		} else {
			c.journal.Fail(task.ID, err)
		}
		message := api.Message(err)
		if message == "" {
			message = MessageImportFailed
		}
		c.notices.Error(message)
		c.logger.Warn().Err(err).Str("file", file.Name).Msg("CSV import failed")
		return "", err
	}

	src, err := file.Open()
	if err != nil {
		return fail(err)
	}
	defer src.Close()

	reporter.Start(file.Size, "Importing "+file.Name)
	reader := progress.NewProgressReader(src, file.Size, &journalReporter{Reporter: reporter, journal: c.journal, taskID: task.ID})

	message, err := c.gateway.ImportCSV(ctx, reader, file.Name)
	if err != nil {
		return fail(err)
	}
	reporter.Finish()

	if message == "" {
		message = MessageImported
	}
	c.journal.Complete(task.ID, message)
	c.logger.Info().Str("file", file.Name).Int64("bytes", file.Size).Msg("CSV imported")

	if c.list != nil {
		if err := c.list.Reload(ctx); err != nil {
			c.logger.Debug().Err(err).Msg("List reload after import failed")
		}
	}
	c.notices.Success(message)
	return message, nil
}

// ExportAll downloads the roster and saves it as students.csv. An empty
// export is still saved. Returns where the file went.
func (c *Coordinator) ExportAll(ctx context.Context) (string, error) {
	name := constants.ExportFilename
	task := c.journal.Track(TaskExport, name, 0)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.journal.SetCancel(task.ID, cancel)

	reporter := c.progress(TaskExport, name)

	data, err := c.gateway.ExportCSV(ctx)
	if err != nil {
		reporter.Error(err)
		c.journal.Fail(task.ID, err)
		c.notices.Error(MessageExportFailed)
		c.logger.Warn().Err(err).Msg("CSV export failed")
		return "", err
	}

	reporter.Start(int64(len(data)), "Saving "+name)
	path, err := c.saver.Save(name, data)
	if err != nil {
		reporter.Error(err)
		c.journal.Fail(task.ID, err)
		c.notices.Error(MessageExportSaveFail)
		c.logger.Warn().Err(err).Msg("Failed to save export")
		return "", err
	}
	reporter.Update(int64(len(data)))
	reporter.Finish()

	c.journal.UpdateBytes(task.ID, int64(len(data)))
	c.journal.Complete(task.ID, path)
	c.logger.Info().Str("path", path).Int("bytes", len(data)).Msg("Roster exported")
	c.notices.Success("Exported " + name)
	return path, nil
}

// journalReporter forwards byte counts to the journal alongside the reporter.
type journalReporter struct {
	progress.Reporter
	journal *Journal
	taskID  string
}

func (r *journalReporter) Update(current int64) {
	r.Reporter.Update(current)
	r.journal.UpdateBytes(r.taskID, current)
}
