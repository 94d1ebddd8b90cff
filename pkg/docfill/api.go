// Package docfill assembles Word documents from DOCX templates.
//
// A template is loaded into an immutable Package. The Generator binds field
// values and row lists into the main document part, or inserts a synthesized
// table, optionally forces landscape pages, writes the result to a flat
// output directory and converts it to PDF when a renderer is available.
//
// Basic Usage:
//
//	cfg := docfill.DefaultConfig()
//	gen, err := docfill.NewGenerator(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	tmpl, err := docfill.Open("templates/contract.docx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := gen.Generate(ctx, tmpl,
//	    docfill.FieldMap{"ClientName": "Ann"},
//	    []docfill.TableRow{{Name: "Widget", Quantity: 2, UnitPrice: 1999, Total: 3998}},
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Document.Name, res.Message)
//
// Template Syntax:
//
// Fields: {ClientName}, {City}
//
// Loops: {#items}{product} x {quantity} = {total}{/items}
//
// A loop inside one table row repeats the row. A loop whose markers stand
// alone in their own paragraphs repeats the content between them.
//
// Large tables: a <!--TABLE--> marker, or a paragraph containing only that
// text, is replaced by GenerateLarge's synthesized table.
package docfill

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Artifact is one generated file in the output store.
type Artifact struct {
	// Name is the file name relative to the output directory.
	Name string `json:"name"`
	Size int    `json:"size"`
	// Strategy names the renderer that produced a portable artifact.
	Strategy string `json:"strategy,omitempty"`
}

// Result is the outcome of a successful generation. Document is always set;
// Portable is nil when the PDF could not be produced.
type Result struct {
	Document Artifact  `json:"document"`
	Portable *Artifact `json:"portable,omitempty"`
	Message  string    `json:"message"`
	// PortableErr explains a missing Portable artifact. It is nil when
	// rendering succeeded or is disabled.
	PortableErr error `json:"-"`
}

var errNoTemplate = &InputError{Field: "template", Message: "no template given"}

// Generator runs generation requests. It holds no per-request state and is
// safe for concurrent use.
type Generator struct {
	config   *Config
	store    *OutputStore
	binder   *Binder
	synth    *Synthesizer
	renderer *Renderer
	logger   *zap.Logger

	rendererSet bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithRenderer replaces the renderer built from the configuration. A nil
// renderer disables PDF output.
func WithRenderer(r *Renderer) Option {
	return func(g *Generator) {
		g.renderer = r
		g.rendererSet = true
	}
}

// WithSynthesizer replaces the table synthesizer.
func WithSynthesizer(s *Synthesizer) Option {
	return func(g *Generator) {
		g.synth = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// NewGenerator creates a generator writing to cfg.OutputDir.
func NewGenerator(cfg *Config, opts ...Option) (*Generator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := NewOutputStore(cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	g := &Generator{
		config: cfg,
		store:  store,
		binder: NewBinder(cfg.LoopName, cfg.Linebreaks),
		synth:  NewSynthesizer(),
		logger: GetLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if !g.rendererSet && cfg.Render.Enabled {
		g.renderer = NewRendererFromConfig(cfg.Render, g.logger)
	}
	return g, nil
}

// Store returns the output store.
func (g *Generator) Store() *OutputStore {
	return g.store
}

// Generate binds fields and rows into tmpl, saves the document as
// document_<id>.docx and renders it to PDF. Render failures are reported in
// the Result, not as an error.
func (g *Generator) Generate(ctx context.Context, tmpl *Package, fields FieldMap, rows []TableRow) (*Result, error) {
	if tmpl == nil {
		return nil, errNoTemplate
	}
	start := time.Now()
	g.logger.Info("generating document",
		zap.Int("template_entries", len(tmpl.Entries())),
		zap.Int("fields", len(fields)),
		zap.Int("rows", len(rows)))

	data, err := g.bind(tmpl, fields, rows)
	if err != nil {
		return nil, err
	}
	return g.finish(ctx, "document", data, start)
}

// GenerateLarge inserts a synthesized table of rowCount rows into tmpl and
// saves it as large_table_<n>_<id>.docx. Fields are not substituted.
func (g *Generator) GenerateLarge(ctx context.Context, tmpl *Package, rowCount int) (*Result, error) {
	if tmpl == nil {
		return nil, errNoTemplate
	}
	if rowCount < 0 {
		return nil, &InputError{Field: "rows", Message: fmt.Sprintf("row count must not be negative, got %d", rowCount)}
	}
	if limit := g.config.MaxLargeRows; limit > 0 && rowCount > limit {
		return nil, &InputError{Field: "rows", Message: fmt.Sprintf("row count %d exceeds the limit of %d", rowCount, limit)}
	}

	start := time.Now()
	g.logger.Info("generating large table",
		zap.Int("template_entries", len(tmpl.Entries())),
		zap.Int("rows", rowCount))

	doc, err := tmpl.DocumentXML()
	if err != nil {
		return nil, err
	}
	table, err := g.synth.Synthesize(rowCount)
	if err != nil {
		return nil, err
	}
	doc, err = InsertTable(doc, table)
	if err != nil {
		return nil, &ArchiveError{Reason: "document markup is not well-formed", Cause: err}
	}

	data, err := g.serialize(tmpl.WithDocumentXML(doc))
	if err != nil {
		return nil, err
	}
	return g.finish(ctx, fmt.Sprintf("large_table_%d", rowCount), data, start)
}

// GenerateLandscape binds fields into tmpl and saves the document, then
// forces every section of the saved document to landscape and saves that
// as landscape_<id>.docx. Only the landscape document is rendered.
func (g *Generator) GenerateLandscape(ctx context.Context, tmpl *Package, fields FieldMap) (*Result, error) {
	if tmpl == nil {
		return nil, errNoTemplate
	}
	start := time.Now()
	g.logger.Info("generating landscape document",
		zap.Int("template_entries", len(tmpl.Entries())),
		zap.Int("fields", len(fields)))

	data, err := g.bind(tmpl, fields, nil)
	if err != nil {
		return nil, err
	}
	portrait, err := g.store.Save("document", "docx", data)
	if err != nil {
		return nil, err
	}

	saved, err := g.store.Read(portrait)
	if err != nil {
		return nil, err
	}
	pkg, err := Load(saved)
	if err != nil {
		return nil, err
	}
	doc, err := pkg.DocumentXML()
	if err != nil {
		return nil, err
	}
	doc, err = ForceLandscape(doc)
	if err != nil {
		return nil, err
	}
	patched, err := pkg.WithDocumentXML(doc).Serialize()
	if err != nil {
		return nil, err
	}

	g.logger.Debug("landscape applied", zap.String("source", portrait))
	return g.finish(ctx, "landscape", patched, start)
}

func (g *Generator) bind(tmpl *Package, fields FieldMap, rows []TableRow) ([]byte, error) {
	doc, err := tmpl.DocumentXML()
	if err != nil {
		return nil, err
	}
	bound, err := g.binder.Bind(doc, fields.WithAliases(g.config.FieldAliases...), rows)
	if err != nil {
		return nil, err
	}
	return g.serialize(tmpl.WithDocumentXML(bound))
}

func (g *Generator) serialize(pkg *Package) ([]byte, error) {
	pkg, err := pkg.AsDocument()
	if err != nil {
		return nil, err
	}
	return pkg.Serialize()
}

// finish saves the document and attaches the PDF when rendering works.
func (g *Generator) finish(ctx context.Context, prefix string, data []byte, start time.Time) (*Result, error) {
	name, err := g.store.Save(prefix, "docx", data)
	if err != nil {
		return nil, err
	}
	res := &Result{Document: Artifact{Name: name, Size: len(data)}}

	if g.renderer != nil {
		g.render(ctx, res, data)
	} else {
		res.Message = "Document generated; PDF conversion is disabled"
	}

	g.logger.Info("generation finished",
		zap.String("output", name),
		zap.Bool("portable", res.Portable != nil),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

func (g *Generator) render(ctx context.Context, res *Result, data []byte) {
	rendition, err := g.renderer.Render(ctx, data)
	if err == nil {
		pdfName := Sibling(res.Document.Name, "pdf")
		if err = g.store.Put(pdfName, rendition.Bytes); err == nil {
			res.Portable = &Artifact{Name: pdfName, Size: len(rendition.Bytes), Strategy: rendition.Strategy}
			res.Message = "Document and PDF generated"
			return
		}
	}

	g.logger.Warn("portable format unavailable",
		zap.String("output", res.Document.Name),
		zap.String("kind", string(KindOf(err))),
		zap.Error(err))
	res.PortableErr = err
	res.Message = fmt.Sprintf("Document generated; PDF unavailable (%s)", KindOf(err))
}
