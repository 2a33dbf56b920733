package office

import (
	"context"
	"strings"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/runner"
)

func (a *Adapter) convertDocument(ctx context.Context, in extract.Input, format string) (*extract.Result, error) {
	txt, err := a.pandoc(ctx, in, format)
	if err == nil {
		res := extract.NewResult(txt)
		res.Set("converter", "pandoc")
		return res, nil
	}
	if common.KindOf(err) != common.KindDependencyMissing || !hasBuiltinReader(format) {
		return nil, err
	}

	a.logger.Warn("office.pandoc.missing", "filename", in.Filename, "format", format)
	txt, rerr := readPackage(in.Data, format)
	if rerr != nil {
		return nil, common.InvalidInput("read "+format+" package", rerr)
	}
	res := extract.NewResult(txt)
	res.Set("converter", "ooxml")
	res.Warn("pandoc unavailable; used built-in package reader")
	return res, nil
}

func (a *Adapter) pandoc(ctx context.Context, in extract.Input, format string) (string, error) {
	scratch, err := runner.NewScratch(a.cfg.TempDir, "office-*", a.logger)
	if err != nil {
		return "", err
	}
	defer scratch.Close()

	name := "input"
	if ext := constants.ExtOf(runner.SafeName(in.Filename, "")); ext != "" {
		name += "." + ext
	}
	path, err := scratch.Write(name, in.Data)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.CmdTimeout)
	defer cancel()
	// pandoc -f FORMAT -t plain --wrap=none INPUT
	out, _, err := a.runner.Run(ctx, a.cfg.Pandoc, "-f", format, "-t", "plain", "--wrap=none", path)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\n"), nil
}
