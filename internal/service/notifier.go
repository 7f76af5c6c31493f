package service

import (
	"github.com/sirupsen/logrus"

	"github.com/openequity/Settlement-Backend/internal/model"
)

// Notifier receives the engine's downstream events. The email and
// document-generation collaborators that consume them live outside this
// service; production wires a queue-backed implementation, tests a recorder.
type Notifier interface {
	ComputationFinalized(computation model.DividendComputation)
	EquilibriumPriceSet(offer model.TenderOffer)
	PaymentSucceeded(payment model.Payment)
	PaymentFailed(payment model.Payment)
}

// LogNotifier is the default Notifier: it only writes structured log lines.
type LogNotifier struct {
	Log *logrus.Logger
}

func (n *LogNotifier) ComputationFinalized(c model.DividendComputation) {
	n.Log.WithFields(logrus.Fields{
		"computationId": c.ID,
		"companyId":     c.CompanyID,
		"totalAmount":   c.TotalAmount.String(),
	}).Info("dividend computation finalized")
}

func (n *LogNotifier) EquilibriumPriceSet(o model.TenderOffer) {
	n.Log.WithFields(logrus.Fields{
		"tenderOfferId": o.ID,
		"acceptedPrice": o.AcceptedPriceCents.String(),
	}).Info("equilibrium price set")
}

func (n *LogNotifier) PaymentSucceeded(p model.Payment) {
	n.Log.WithFields(logrus.Fields{
		"paymentId": p.ID,
		"payableId": p.Target.PayableID,
		"netAmount": p.NetAmount.String(),
	}).Info("payment succeeded")
}

func (n *LogNotifier) PaymentFailed(p model.Payment) {
	n.Log.WithFields(logrus.Fields{
		"paymentId": p.ID,
		"payableId": p.Target.PayableID,
		"netAmount": p.NetAmount.String(),
	}).Warn("payment failed")
}
