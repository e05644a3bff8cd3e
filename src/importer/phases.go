package importer

import (
	"strings"

	"github.com/username/ledgervault/src/identity"
	"github.com/username/ledgervault/src/matching"
	"github.com/username/ledgervault/src/models"
	"github.com/username/ledgervault/src/utils"
)

// fingerprint condenses an entity's semantic content for modified-detection.
// Signatures match identities across imports; fingerprints decide whether a
// matched identity's content changed.
func fingerprint(fields ...string) string {
	return utils.ContentHash([]byte(strings.Join(fields, "\x1f")))
}

// IsSpecialCategoryMarker reports whether a category name is one of the
// ledger-export control markers that never become Category rows: transfer
// brackets, realized/unrealized-gain pseudo-categories, split placeholders.
func IsSpecialCategoryMarker(name string) bool {
	if name == "" {
		return true
	}
	if strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
		return true
	}
	if strings.HasPrefix(name, "_") {
		return true
	}
	return name == "--Split--"
}

func (o *orchestrator) importAccounts(records []models.AccountRecord) error {
	o.progress.SetEntity(models.EntityAccount, len(records))
	stmt, err := o.tx.Prepare(`INSERT INTO accounts (id, name, type, description) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		id, err := o.resolveIdentity(models.EntityAccount,
			identity.AccountSignature(rec.Name),
			fingerprint(rec.Name, rec.Type, rec.Description))
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(id, rec.Name, rec.Type, rec.Description); err != nil {
			return err
		}
		o.accountIDs[rec.Name] = id
		o.progress.Advance()
	}
	return nil
}

func (o *orchestrator) importCategories(records []models.CategoryRecord) error {
	o.progress.SetEntity(models.EntityCategory, len(records))
	stmt, err := o.tx.Prepare(`INSERT INTO categories (id, name, description, income) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if IsSpecialCategoryMarker(rec.Name) {
			o.progress.Advance()
			continue
		}
		id, err := o.resolveIdentity(models.EntityCategory,
			identity.CategorySignature(rec.Name),
			fingerprint(rec.Name, rec.Description, boolField(rec.Income)))
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(id, rec.Name, rec.Description, rec.Income); err != nil {
			return err
		}
		o.categoryIDs[rec.Name] = id
		o.progress.Advance()
	}
	return nil
}

func (o *orchestrator) importTags(records []models.TagRecord) error {
	o.progress.SetEntity(models.EntityTag, len(records))
	stmt, err := o.tx.Prepare(`INSERT INTO tags (id, name, description) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		id, err := o.resolveIdentity(models.EntityTag,
			identity.TagSignature(rec.Name),
			fingerprint(rec.Name, rec.Description))
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(id, rec.Name, rec.Description); err != nil {
			return err
		}
		o.progress.Advance()
	}
	return nil
}

// importSecurities matches two-tier: the ticker-keyed signature first, then
// the normalized-name fallback for securities whose export gained or lost a
// ticker between imports.
func (o *orchestrator) importSecurities(records []models.SecurityRecord) error {
	o.progress.SetEntity(models.EntitySecurity, len(records))
	stmt, err := o.tx.Prepare(`INSERT INTO securities (id, name, ticker, type) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	lookup := o.lookups[models.EntitySecurity]
	for _, rec := range records {
		sig := identity.SecuritySignature(rec.Ticker, rec.Name)
		fp := fingerprint(rec.Name, rec.Ticker, rec.Type)

		var id string
		if cand, ok := lookup.Take(sig); ok {
			id, err = o.adoptMatch(models.EntitySecurity, cand, fp)
		} else if nameSig := identity.SecurityNameSignature(rec.Name); nameSig != sig {
			if cand, ok := lookup.Take(nameSig); ok {
				id, err = o.adoptMatch(models.EntitySecurity, cand, fp)
			} else {
				id, err = o.mintIdentity(models.EntitySecurity, sig, fp)
			}
		} else {
			id, err = o.mintIdentity(models.EntitySecurity, sig, fp)
		}
		if err != nil {
			return err
		}

		if _, err := stmt.Exec(id, rec.Name, rec.Ticker, rec.Type); err != nil {
			return err
		}
		if rec.Ticker != "" {
			o.securityIDsByTick[rec.Ticker] = id
		}
		o.securityIDsByName[utils.NormalizeName(rec.Name)] = id
		o.progress.Advance()
	}
	return nil
}

func (o *orchestrator) importPrices(records []models.PriceRecord) error {
	o.progress.SetEntity(models.EntityPrice, len(records))
	stmt, err := o.tx.Prepare(`INSERT INTO prices (id, security_id, date, price) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		securityID := o.resolveSecurityRef(rec.SecurityKey)
		if securityID == "" {
			o.warnf("price for %q on %s references an unknown security, skipped",
				rec.SecurityKey, utils.FormatStoreDate(rec.Date))
			o.progress.Advance()
			continue
		}

		id, err := o.resolveIdentity(models.EntityPrice,
			identity.PriceSignature(securityID, rec.Date),
			fingerprint(utils.FormatAmount(rec.Price)))
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(id, securityID, utils.FormatStoreDate(rec.Date), rec.Price); err != nil {
			return err
		}
		o.priceIndex.Add(securityID, rec.Date, rec.Price)
		o.progress.Advance()
	}
	return nil
}

// adoptMatch applies restore/modified accounting to a matched candidate.
func (o *orchestrator) adoptMatch(entityType string, cand matching.Candidate, fp string) (string, error) {
	switch {
	case cand.Orphaned:
		if err := o.registry.Restore(cand.ID); err != nil {
			return "", err
		}
		o.record(models.ChangeRestored, entityType, cand.ID)
	case cand.Fingerprint != fp:
		o.record(models.ChangeModified, entityType, cand.ID)
	}
	if cand.Fingerprint != fp {
		if err := o.registry.SetFingerprint(cand.ID, fp); err != nil {
			return "", err
		}
	}
	return cand.ID, nil
}

func (o *orchestrator) mintIdentity(entityType, signature, fp string) (string, error) {
	id, err := o.registry.CreateStableID(entityType)
	if err != nil {
		return "", err
	}
	if err := o.registry.Insert(id, entityType, signature); err != nil {
		return "", err
	}
	if err := o.registry.SetFingerprint(id, fp); err != nil {
		return "", err
	}
	o.record(models.ChangeCreated, entityType, id)
	return id, nil
}

// resolveSecurityRef resolves a transaction's or price's security reference,
// trying the ticker index first and the normalized name second.
func (o *orchestrator) resolveSecurityRef(ref string) string {
	if ref == "" {
		return ""
	}
	if id, ok := o.securityIDsByTick[ref]; ok {
		return id
	}
	if id, ok := o.securityIDsByName[utils.NormalizeName(ref)]; ok {
		return id
	}
	return ""
}

// resolveCategoryRef maps a category name to its stable id; special markers
// and unknown names yield no category.
func (o *orchestrator) resolveCategoryRef(name string) string {
	if IsSpecialCategoryMarker(name) {
		return ""
	}
	return o.categoryIDs[name]
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
