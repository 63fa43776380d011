package api

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bloodfinder/internal/apperr"
	"bloodfinder/internal/donor"
	"bloodfinder/internal/export"
	"bloodfinder/internal/model"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) RegisterDonor(c *gin.Context) {
	var reg donor.Registration
	if err := c.ShouldBindJSON(&reg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := h.donors.Register(c.Request.Context(), reg)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// ListDonors reads blood_group, branch, available (default true), page and limit from
// the query string.
func (h *Handler) ListDonors(c *gin.Context) {
	f, err := donorFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	page, err := h.donors.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := donorPageView{Donors: make([]donorView, 0, len(page.Donors)), Count: page.Count, Page: page.Page, Limit: page.Limit}
	for _, d := range page.Donors {
		out.Donors = append(out.Donors, donorView{Donor: d, ContactURL: donor.ContactURL(d, h.cfg.Branding.AppName)})
	}
	c.JSON(http.StatusOK, out)
}

// donorView adds the WhatsApp contact link the donor list offers per row.
type donorView struct {
	donor.Donor
	ContactURL string `json:"contact_url"`
}

type donorPageView struct {
	Donors []donorView `json:"donors"`
	Count  int         `json:"count"`
	Page   int         `json:"page"`
	Limit  int         `json:"limit"`
}

func donorFilter(c *gin.Context) (donor.Filter, error) {
	f := donor.DefaultFilter()
	// An unescaped '+' in a query string decodes to a space.
	if v := strings.TrimSpace(strings.ReplaceAll(c.Query("blood_group"), " ", "+")); v != "" {
		g, err := model.ParseBloodGroup(v)
		if err != nil {
			return f, err
		}
		f.BloodGroup = g
	}
	f.Branch = strings.TrimSpace(c.Query("branch"))
	if v := c.Query("available"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, apperr.Validation("available must be true or false")
		}
		f.AvailableOnly = b
	}
	var err error
	if f.Page, err = queryInt(c, "page", 0); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(c, "limit", donor.DefaultLimit); err != nil {
		return f, err
	}
	return f, nil
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", key)
	}
	return n, nil
}

func (h *Handler) BranchSuggestions(c *gin.Context) {
	branches, err := h.donors.BranchSuggestions(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"branches": branches})
}

func (h *Handler) ExportCSV(c *gin.Context) {
	h.exportDonors(c, "csv", "text/csv; charset=utf-8", export.WriteCSV)
}

func (h *Handler) ExportXLSX(c *gin.Context) {
	h.exportDonors(c, "xlsx", xlsxContentType, export.WriteXLSX)
}

func (h *Handler) exportDonors(c *gin.Context, ext, contentType string, write func(io.Writer, []donor.Donor) error) {
	donors, err := h.donors.All(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := write(&buf, donors); err != nil {
		h.fail(c, err)
		return
	}
	name := export.Filename(time.Now(), ext)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
