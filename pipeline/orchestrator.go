// Package pipeline orchestrates the store and retrieve flows: embedding,
// encryption, content upload, artifact caching and ledger anchoring for the
// store direction, and the exact reverse for retrieval.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/invisicipher/secure-image-backend/apperr"
	"github.com/invisicipher/secure-image-backend/interfaces"
)

// Store pipeline stage numbers, carried in dependency errors so callers can
// tell how far a failed run got.
const (
	StageEmbed = iota + 1
	StageEncrypt
	StageUpload
	StageCache
	StageAnchor
)

// Retrieve pipeline stage numbers.
const (
	StageResolve = iota + 1
	StageDownload
	StageDecrypt
	StageCachedStego
	StageReveal
)

// StoreResult reports a completed store run.
type StoreResult struct {
	CID     interfaces.CID           `json:"cid"`
	Receipt interfaces.AnchorReceipt `json:"receipt"`
}

// Orchestrator runs the five-stage store and retrieve pipelines. Stages are
// sequential within a request; a failure aborts the run without undoing
// earlier stages, so a partially completed run can leave content on the
// network with no anchor. That orphan is reported, not cleaned up.
type Orchestrator struct {
	content   interfaces.ContentStore
	transform interfaces.TransformService
	cache     interfaces.ArtifactCache
	ledger    interfaces.RecordLedger
	index     interfaces.RecordIndex
	log       *slog.Logger
	now       func() time.Time
}

// NewOrchestrator wires the pipeline collaborators.
func NewOrchestrator(
	content interfaces.ContentStore,
	transform interfaces.TransformService,
	cache interfaces.ArtifactCache,
	ledger interfaces.RecordLedger,
	index interfaces.RecordIndex,
	log *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		content:   content,
		transform: transform,
		cache:     cache,
		ledger:    ledger,
		index:     index,
		log:       log,
		now:       time.Now,
	}
}

// Store runs the concealment pipeline: embed the secret image in the cover,
// encrypt the stego image, upload the ciphertext, cache the pre-encryption
// stego under the ciphertext's CID, then anchor the CID against the patient
// and record it locally.
func (o *Orchestrator) Store(ctx context.Context, uploadedBy, patient interfaces.WalletAddress, cover, secret []byte) (StoreResult, error) {
	if len(cover) == 0 || len(secret) == 0 {
		return StoreResult{}, apperr.Validation("cover and secret images are required")
	}

	stego, err := o.transform.Embed(ctx, cover, secret)
	if err != nil {
		return StoreResult{}, stageErr(StageEmbed, "failed to hide image", err)
	}

	ciphertext, err := o.transform.Encrypt(ctx, stego)
	if err != nil {
		return StoreResult{}, stageErr(StageEncrypt, "failed to encrypt image", err)
	}

	cid, err := o.content.Upload(ctx, ciphertext)
	if err != nil {
		return StoreResult{}, stageErr(StageUpload, "failed to upload encrypted image", err)
	}

	if err := o.cache.Put(cid, stego); err != nil {
		// Content is already on the network with no anchor. Surfaced, not
		// cleaned up.
		o.log.Error("Stego cache write failed after upload, content orphaned",
			slog.String("cid", string(cid)), "err", err)
		return StoreResult{}, stageErr(StageCache, "failed to cache stego artifact", err)
	}

	receipt, err := o.ledger.AnchorPointer(ctx, patient, cid)
	if err != nil {
		o.log.Error("Pointer anchoring failed after upload, content orphaned",
			slog.String("cid", string(cid)),
			slog.String("patient", patient.String()),
			"err", err)
		return StoreResult{}, stageErr(StageAnchor, "failed to anchor content pointer", err)
	}

	record := interfaces.PipelineRecord{
		CID:            cid,
		PatientAddress: patient,
		UploadedBy:     uploadedBy,
		BlockNumber:    receipt.BlockNumber,
		TxHash:         receipt.TxHash,
		CreatedAt:      o.now().UTC(),
	}
	if err := o.index.Insert(ctx, record); err != nil {
		return StoreResult{}, stageErr(StageAnchor, "failed to index pipeline record", err)
	}

	o.log.Info("Store pipeline completed",
		slog.String("cid", string(cid)),
		slog.String("patient", patient.String()),
		slog.Uint64("blockNumber", receipt.BlockNumber))

	return StoreResult{CID: cid, Receipt: receipt}, nil
}

// Retrieve reverses the pipeline for a single CID: download the ciphertext,
// decrypt it, look up the cached stego artifact, and reveal the hidden
// image. Patients may only retrieve records anchored against their own
// address; admins are unrestricted.
func (o *Orchestrator) Retrieve(ctx context.Context, caller interfaces.Claims, cid interfaces.CID) ([]byte, error) {
	if err := cid.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	if err := o.authorize(ctx, caller, cid); err != nil {
		return nil, err
	}

	ciphertext, err := o.content.Download(ctx, cid)
	if err != nil {
		if errors.Is(err, interfaces.ErrArtifactNotFound) {
			return nil, apperr.NotFound("no content found for this identifier")
		}
		return nil, stageErr(StageDownload, "failed to download encrypted image", err)
	}

	// Decryption validates the ciphertext but its output is not fed to the
	// reveal step. Reveal needs the pre-encryption stego artifact cached
	// during the store run; the decrypted payload cannot substitute for it.
	if _, err := o.transform.Decrypt(ctx, ciphertext); err != nil {
		return nil, stageErr(StageDecrypt, "failed to decrypt image", err)
	}

	// Absence of the cached artifact is terminal for this record.
	stego, err := o.cache.Get(cid)
	if err != nil {
		if errors.Is(err, interfaces.ErrArtifactNotFound) {
			return nil, apperr.NotFound("stego artifact not available for this record")
		}
		return nil, stageErr(StageCachedStego, "failed to load cached stego artifact", err)
	}

	secret, err := o.transform.Reveal(ctx, stego)
	if err != nil {
		return nil, stageErr(StageReveal, "failed to reveal hidden image", err)
	}

	o.log.Info("Retrieve pipeline completed",
		slog.String("cid", string(cid)),
		slog.String("caller", caller.Address.String()))

	return secret, nil
}

// Records lists the pipeline records visible to the caller for a patient
// address. Patients may only list their own records. The local index is
// consulted first; when it has nothing the ledger pointers are used as a
// fallback, yielding records with only the CID and patient fields set.
func (o *Orchestrator) Records(ctx context.Context, caller interfaces.Claims, patient interfaces.WalletAddress) ([]interfaces.PipelineRecord, error) {
	if caller.Role != interfaces.RoleAdmin && !caller.Address.Equal(patient) {
		return nil, apperr.Auth("not permitted to list records for this address", nil)
	}

	records, err := o.index.ByPatient(ctx, patient)
	if err != nil {
		return nil, stageErr(StageResolve, "failed to query record index", err)
	}
	if len(records) > 0 {
		return records, nil
	}

	cids, err := o.ledger.ReadPointers(ctx, patient)
	if err != nil {
		return nil, stageErr(StageResolve, "failed to read ledger pointers", err)
	}
	records = make([]interfaces.PipelineRecord, 0, len(cids))
	for _, cid := range cids {
		records = append(records, interfaces.PipelineRecord{
			CID:            cid,
			PatientAddress: patient,
		})
	}
	return records, nil
}

// authorize checks that the caller may touch the record behind cid. Admins
// pass unconditionally. Patients must own the record: the local index is
// checked first, then the ledger pointers for their own address.
func (o *Orchestrator) authorize(ctx context.Context, caller interfaces.Claims, cid interfaces.CID) error {
	if caller.Role == interfaces.RoleAdmin {
		return nil
	}

	record, found, err := o.index.ByCID(ctx, cid)
	if err != nil {
		return stageErr(StageResolve, "failed to query record index", err)
	}
	if found {
		if !record.PatientAddress.Equal(caller.Address) {
			return apperr.Auth("not permitted to access this record", nil)
		}
		return nil
	}

	cids, err := o.ledger.ReadPointers(ctx, caller.Address)
	if err != nil {
		return stageErr(StageResolve, "failed to read ledger pointers", err)
	}
	for _, c := range cids {
		if c == cid {
			return nil
		}
	}
	return apperr.Auth("not permitted to access this record", nil)
}

func stageErr(stage int, msg string, cause error) error {
	return apperr.DependencyStage(stage, msg, cause)
}
