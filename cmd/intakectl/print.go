package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	fmodel "vivienda_backend/internals/features/intake/forms/model"
	fservice "vivienda_backend/internals/features/intake/forms/service"
)

func printSchema(cmd *cobra.Command, s *fservice.Schema) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", s.Form.FormTitle, s.Form.FormSlug)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, sec := range s.Sections {
		fmt.Fprintf(w, "\n[%s] %s\n", sec.Key, sec.Title)
		for _, q := range sec.Questions {
			flags := make([]string, 0, 2)
			if q.QuestionIsRequired {
				flags = append(flags, "required")
			}
			if !q.QuestionIsActive {
				flags = append(flags, "inactive")
			}
			fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\n",
				q.QuestionOrderIndex, q.QuestionKey, q.QuestionInputType, strings.Join(flags, ","), optionLabels(q.Options))
		}
	}
	_ = w.Flush()
}

func optionLabels(opts []fmodel.OptionModel) string {
	labels := make([]string, 0, len(opts))
	for _, o := range opts {
		labels = append(labels, o.OptionLabel)
	}
	return strings.Join(labels, " | ")
}
