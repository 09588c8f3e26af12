// Package products serves the product catalogue.
package products

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kilianp07/vending/api/respond"
	"github.com/kilianp07/vending/core/logger"
	corestore "github.com/kilianp07/vending/core/store"
)

const maxUpload = 10 << 20

// Handler groups the product endpoints.
type Handler struct {
	store    corestore.Products
	imageDir string
	log      logger.Logger
}

// NewHandler returns product handlers. Uploaded images are written to
// imageDir and referenced as /images/<name>.
func NewHandler(store corestore.Products, imageDir string, log logger.Logger) *Handler {
	return &Handler{store: store, imageDir: imageDir, log: log}
}

// List serves GET /api/products.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ps, err := h.store.ListProducts(r.Context())
	if err != nil {
		h.log.Errorf("list products: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to fetch products: "+err.Error())
		return
	}
	if ps == nil {
		ps = []corestore.Product{}
	}
	respond.JSON(w, http.StatusOK, ps)
}

// Update serves PUT /api/products/{id} with a partial body.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		respond.Fail(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var u corestore.ProductUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		respond.Fail(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	u.Image = nil
	h.apply(w, r, id, u, func(p corestore.Product) any { return p })
}

// UploadImage serves POST /api/products/{id}/image with a multipart "image" field.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		respond.Fail(w, http.StatusBadRequest, "invalid product id")
		return
	}
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		respond.Fail(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	file, hdr, err := r.FormFile("image")
	if err != nil {
		respond.Fail(w, http.StatusBadRequest, "missing image file")
		return
	}
	defer file.Close()
	name := filepath.Base(hdr.Filename)
	if name == "." || name == string(filepath.Separator) {
		respond.Fail(w, http.StatusBadRequest, "invalid file name")
		return
	}
	if err := h.save(name, file); err != nil {
		h.log.Errorf("save image for product %d: %v", id, err)
		respond.Fail(w, http.StatusInternalServerError, "Failed to update product image: "+err.Error())
		return
	}
	image := "/images/" + name
	h.apply(w, r, id, corestore.ProductUpdate{Image: &image}, func(corestore.Product) any {
		return map[string]any{"success": true, "image": image}
	})
}

func (h *Handler) save(name string, src io.Reader) error {
	if err := os.MkdirAll(h.imageDir, 0o755); err != nil {
		return err
	}
	dst, err := os.Create(filepath.Join(h.imageDir, name))
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, id int, u corestore.ProductUpdate, body func(corestore.Product) any) {
	p, err := h.store.UpdateProduct(r.Context(), id, u)
	switch {
	case errors.Is(err, corestore.ErrNotFound):
		respond.Fail(w, http.StatusNotFound, fmt.Sprintf("product %d not found", id))
	case errors.Is(err, corestore.ErrNoFields):
		respond.Fail(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.log.Errorf("update product %d: %v", id, err)
		respond.Fail(w, http.StatusInternalServerError, "Failed to update product: "+err.Error())
	default:
		h.log.Infof("product %d updated", id)
		respond.JSON(w, http.StatusOK, body(p))
	}
}
