package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tcncore/internal/crypto"
	"tcncore/internal/domain"
	"tcncore/internal/services/reporting"
)

var (
	feverLevels = map[string]domain.FeverSeverity{
		"none": domain.FeverNone, "mild": domain.FeverMild, "serious": domain.FeverSerious,
	}
	coughLevels = map[string]domain.CoughSeverity{
		"none": domain.CoughNone, "existing": domain.CoughExisting, "wet": domain.CoughWet, "dry": domain.CoughDry,
	}
)

func reportCmd() *cobra.Command {
	var (
		fever, cough string
		symptoms     []string
		earliest     string
		dryRun       bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Sign and submit a symptom report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			m, err := buildMemo(fever, cough, symptoms, earliest)
			if err != nil {
				return err
			}
			now := time.Now()

			if dryRun {
				built, err := appCtx.Reporting.Build(passphrase, m, now)
				if err != nil {
					return reportErr(err)
				}
				for _, b := range built {
					out(cmd, "report %d..%d\n%s\n", b.Report.Start, b.Report.End(), crypto.B64(b.Wire))
				}
				return nil
			}
			ids, err := appCtx.Reporting.BuildAndSubmit(cmd.Context(), passphrase, m, now)
			for _, id := range ids {
				out(cmd, "submitted %s\n", id)
			}
			return reportErr(err)
		},
	}
	f := cmd.Flags()
	f.StringVar(&fever, "fever", "none", "none, mild or serious")
	f.StringVar(&cough, "cough", "none", "none, existing, wet or dry")
	f.StringSliceVar(&symptoms, "symptom", nil,
		"breathlessness, muscle-aches, loss-smell-taste, diarrhea, runny-nose, other or none")
	f.StringVar(&earliest, "earliest", "", "earliest symptom date, YYYY-MM-DD")
	f.BoolVar(&dryRun, "dry-run", false, "print the signed report instead of submitting it")
	return cmd
}

func reportErr(err error) error {
	if errors.Is(err, reporting.ErrNothingToReport) {
		return errors.New("nothing to report: no tokens broadcast since the last report")
	}
	return err
}

func buildMemo(fever, cough string, symptoms []string, earliest string) (domain.SymptomMemo, error) {
	var m domain.SymptomMemo
	var ok bool
	if m.Fever, ok = feverLevels[strings.ToLower(fever)]; !ok {
		return m, fmt.Errorf("unknown fever level %q", fever)
	}
	if m.Cough, ok = coughLevels[strings.ToLower(cough)]; !ok {
		return m, fmt.Errorf("unknown cough level %q", cough)
	}
	for _, s := range symptoms {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "breathlessness":
			m.Breathlessness = true
		case "muscle-aches":
			m.MuscleAches = true
		case "loss-smell-taste":
			m.LossSmellOrTaste = true
		case "diarrhea":
			m.Diarrhea = true
		case "runny-nose":
			m.RunnyNose = true
		case "other":
			m.Other = true
		case "none":
			m.NoSymptoms = true
		default:
			return m, fmt.Errorf("unknown symptom %q", s)
		}
	}
	if earliest != "" {
		t, err := time.ParseInLocation(time.DateOnly, earliest, time.Local)
		if err != nil {
			return m, fmt.Errorf("--earliest: %w", err)
		}
		t = t.UTC()
		m.EarliestSymptomTime = &t
	}
	if m.NoSymptoms && m.HasSymptoms() {
		return m, errors.New("--symptom none conflicts with reported symptoms")
	}
	return m, nil
}
