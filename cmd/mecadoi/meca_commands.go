package main

import (
	"github.com/spf13/cobra"

	"mecadoi/internal/article"
	"mecadoi/internal/meca"
)

func newMECACommand() *cobra.Command {
	mecaCmd := &cobra.Command{
		Use:         "meca",
		Short:       "Inspect MECA archives",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	mecaCmd.AddCommand(newMECAInfoCommand())
	mecaCmd.AddCommand(newMECAReviewsCommand())
	return mecaCmd
}

type mecaInfo struct {
	Title       string        `yaml:"title"`
	DOI         string        `yaml:"doi,omitempty"`
	PreprintDOI string        `yaml:"preprint_doi,omitempty"`
	Journal     string        `yaml:"journal,omitempty"`
	Status      string        `yaml:"status"`
	Revisions   int           `yaml:"revisions"`
	Reviews     int           `yaml:"reviews"`
	Authors     []meca.Author `yaml:"authors"`
	Abstract    string        `yaml:"abstract,omitempty"`
}

func newMECAInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info ARCHIVE",
		Short: "Print the manuscript metadata of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := meca.Parse(args[0])
			if err != nil {
				return err
			}
			info := mecaInfo{
				Title:       m.Title,
				DOI:         m.DOI,
				PreprintDOI: m.PreprintDOI,
				Journal:     m.Journal,
				Status:      string(article.Classify(m)),
				Revisions:   len(m.ReviewProcess),
				Authors:     m.Authors,
				Abstract:    m.Abstract,
			}
			for _, round := range m.ReviewProcess {
				info.Reviews += len(round.Reviews)
			}
			return writeYAML(cmd, info)
		},
	}
}

func newMECAReviewsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reviews ARCHIVE",
		Short: "Print the review process of an archive as plain text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := meca.Parse(args[0])
			if err != nil {
				return err
			}
			rounds := m.ReviewProcess
			if rounds == nil {
				rounds = []meca.RevisionRound{}
			}
			return writeYAML(cmd, rounds)
		},
	}
}
