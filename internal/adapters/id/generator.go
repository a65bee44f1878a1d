package id

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) generate(prefix string) string {
	id, err := gonanoid.New(21)
	if err != nil {
		return prefix + "_fallback"
	}
	return prefix + "_" + id
}

func (g *Generator) GenerateRunID() string {
	return g.generate("rfr")
}

func (g *Generator) GenerateCandidateID() string {
	return g.generate("rfc")
}

func (g *Generator) GenerateSessionID() string {
	return g.generate("rfb")
}

func (g *Generator) GenerateSampleID() string {
	return g.generate("rfs")
}

func (g *Generator) GeneratePairReportID() string {
	return g.generate("rfp")
}
