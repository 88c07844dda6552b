/**
 * @description
 * Platform fee arithmetic. All amounts are int64 kobo and the fee rate is in
 * basis points, so every computation stays integral.
 *
 * Fee policy: the platform takes its cut whenever a seller is credited from
 * escrow (buyer confirmation, admin finalize, dispute release, the seller's
 * share of a split). Refunds to the buyer are never fee'd.
 */

package app

import "github.com/escrowpad/escrow-service/internal/domain"

// computeFee returns the platform fee for an amount at the given rate.
// Integer floor division; the remainder stays with the payee.
func computeFee(amount, feeBps int64) int64 {
	if amount <= 0 || feeBps <= 0 {
		return 0
	}
	return amount * feeBps / 10000
}

// sellerPayout allocates a full escrow release to the seller net of fee.
func sellerPayout(amount, feeBps int64) domain.DealSettlement {
	fee := computeFee(amount, feeBps)
	return domain.DealSettlement{
		SellerCredit: amount - fee,
		Fee:          fee,
	}
}

// buyerRefund allocates a full escrow refund to the buyer. No fee.
func buyerRefund(amount int64) domain.DealSettlement {
	return domain.DealSettlement{BuyerCredit: amount}
}

// splitAllocation divides escrow between buyer and seller for a dispute split.
// The buyer's share is computed first; the seller receives the remainder minus
// the fee on that remainder, so buyer + seller + fee == amount exactly for any
// percentage in [0, 100].
func splitAllocation(amount int64, buyerPercentage int, feeBps int64) domain.DealSettlement {
	buyerAmount := amount * int64(buyerPercentage) / 100
	sellerGross := amount - buyerAmount
	fee := computeFee(sellerGross, feeBps)
	return domain.DealSettlement{
		BuyerCredit:  buyerAmount,
		SellerCredit: sellerGross - fee,
		Fee:          fee,
	}
}
