package services

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arcadia-bio/biocore/modules/biobank/domain/aggregates/order"
)

// mapPgError translates database failures into service errors. Domain errors
// already mapped upstream pass through untouched.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}

	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}

	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, order.ErrNotFound) {
		return newServiceError(http.StatusNotFound, "BIOBANK_NOT_FOUND", "not found", err)
	}

	var vErr order.ErrVersionMismatch
	if errors.As(err, &vErr) {
		recordWriteConflict("version")
		return newServiceError(http.StatusConflict, "BIOBANK_VERSION_CONFLICT", vErr.Error(), err)
	}

	var tErr order.ErrIllegalTransition
	if errors.As(err, &tErr) {
		return newServiceError(http.StatusUnprocessableEntity, "BIOBANK_ILLEGAL_TRANSITION", tErr.Error(), err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		recordWriteConflict("unique")
		switch pgErr.ConstraintName {
		case "biobank_orders_client_id_key":
			return newServiceError(http.StatusConflict, "BIOBANK_ORDER_EXISTS", "order identifier already exists", err)
		case "biobank_samples_order_id_aliquot_id_key":
			return newServiceError(http.StatusConflict, "BIOBANK_ALIQUOT_CONFLICT", "aliquot identifier already exists on order", err)
		case "biobank_samples_one_root":
			return newServiceError(http.StatusConflict, "BIOBANK_ROOT_CONFLICT", "order already has a root sample", err)
		default:
			return newServiceError(http.StatusConflict, "BIOBANK_CONFLICT", "unique constraint violated", err)
		}
	case "23503": // foreign_key_violation
		return newServiceError(http.StatusUnprocessableEntity, "BIOBANK_BAD_REFERENCE", "referenced record does not exist", err)
	case "40001": // serialization_failure
		recordWriteConflict("serialization")
		return newServiceError(http.StatusConflict, "BIOBANK_RETRY", "write conflict, retry the request", err)
	}
	return err
}
