package analysis

import (
	"fmt"
	"strings"

	"workflow-architect/api/internal/util"
)

// DefaultDomain is business domain the tool targets unless configured otherwise.
const DefaultDomain = "Quản lý đánh giá, lịch sử tham gia thầu (Contractor Evaluation & Bidding History Management)"

// NamingClause is embedded in every prompt, refinement or not.
const NamingClause = `QUY TẮC ĐẶT TÊN BẮT BUỘC:
- TÊN BẢNG (tableName): Phải là tiếng Việt KHÔNG DẤU, viết theo kiểu PascalCase (ví dụ: QuanLyNhaThau, DanhMucVatTu, LichSuDauThau).
- TÊN CỘT (fields[].name): Phải là tiếng Việt KHÔNG DẤU, bắt đầu bằng ký tự 'f' và viết theo kiểu CamelCase (ví dụ: fMaNhaThau, fTenNhaThau, fNgayDanhGia, fDiemSo).
- Không sử dụng ký tự đặc biệt hay khoảng trắng trong tên bảng và tên cột.`

const (
	refinementHeader = "USER REQUEST FOR REFINEMENT: "
	refinementTail   = "Please adjust your analysis and database suggestions based on this specific request while still considering the overall workflow in the image and STRICTLY ADHERING to the naming conventions (unaccented Vietnamese, fields start with 'f')."
	referenceClause  = "An additional reference file has been provided. Use its content as extra context for the refinement request."
	closingClause    = `Please provide the response in a structured JSON format matching the schema provided.
Ensure descriptions are in Vietnamese as requested by the user context.`
)

// Part is one multimodal content part: either Text or inline Data.
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

func (p Part) IsText() bool { return p.Data == nil }

// Request is one outbound generation request. Engines translate it to their
// own wire format.
type Request struct {
	Prompt       string
	Parts        []Part
	Schema       map[string]any
	IsRefinement bool
}

// Builder assembles requests for one business domain.
type Builder struct {
	Domain string
}

func NewBuilder(domain string) *Builder {
	if strings.TrimSpace(domain) == "" {
		domain = DefaultDomain
	}
	return &Builder{Domain: strings.TrimSpace(domain)}
}

// Build is a pure function of its input: identical inputs give byte-identical
// prompts and identical part order.
func (b *Builder) Build(in Input) (Request, error) {
	if len(in.Image) == 0 {
		return Request{}, &InvalidInputError{Field: "image", Reason: "primary image is required"}
	}
	imageMIME := util.PickMIME(in.ImageMIME, "", in.Image)
	if !util.IsImageMIME(imageMIME) {
		return Request{}, &InvalidInputError{Field: "image", Reason: fmt.Sprintf("not an image (%s)", imageMIME)}
	}

	var ref *ReferenceFile
	if in.Reference != nil {
		if len(in.Reference.Data) == 0 {
			return Request{}, &InvalidInputError{Field: "reference_file", Reason: "empty file"}
		}
		refMIME := util.PickMIME(in.Reference.MIMEType, "", in.Reference.Data)
		if !util.IsReferenceMIME(refMIME) {
			return Request{}, &InvalidInputError{Field: "reference_file", Reason: fmt.Sprintf("unsupported type %s", refMIME)}
		}
		ref = &ReferenceFile{Data: in.Reference.Data, MIMEType: refMIME, Name: in.Reference.Name}
	}

	prompt := b.Prompt(in.Instructions, ref != nil)

	parts := make([]Part, 0, 3)
	parts = append(parts, Part{MIMEType: imageMIME, Data: in.Image})
	parts = append(parts, Part{Text: prompt})
	if ref != nil {
		parts = append(parts, Part{MIMEType: ref.MIMEType, Data: ref.Data})
	}

	return Request{
		Prompt:       prompt,
		Parts:        parts,
		Schema:       ResponseSchema(),
		IsRefinement: in.IsRefinement,
	}, nil
}

// Prompt assembles the task text: base task, naming clause, optional
// refinement and reference clauses, output instructions.
func (b *Builder) Prompt(instructions string, withReference bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze this workflow diagram image which describes %q.\n\n", b.Domain)
	sb.WriteString("Tasks:\n")
	sb.WriteString("1. Summarize the business workflow described.\n")
	sb.WriteString("2. Identify all logical steps and decision points.\n")
	sb.WriteString("3. Suggest an optimized relational database schema (tables and fields) to support this specific workflow.\n")
	sb.WriteString("4. Provide specific database design tips for scalability and data integrity.\n\n")
	sb.WriteString(NamingClause)

	if s := strings.TrimSpace(instructions); s != "" {
		sb.WriteString("\n\n")
		sb.WriteString(refinementHeader)
		sb.WriteString(s)
		sb.WriteString("\n")
		sb.WriteString(refinementTail)
	}
	if withReference {
		sb.WriteString("\n\n")
		sb.WriteString(referenceClause)
	}

	sb.WriteString("\n\n")
	sb.WriteString(closingClause)
	return sb.String()
}
