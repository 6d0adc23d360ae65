package bot

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"filelinker/internal/model"
)

// User-facing texts, Bengali first then English.
const (
	msgNotAdmin       = "🚫 দুঃখিত! আপনি এই বট ব্যবহার করার অনুমতি নেই।\n\nSorry! You are not authorized to use this bot."
	msgBanned         = "⛔ আপনি এই বট ব্যবহার করতে নিষিদ্ধ।\n\n⛔ You are banned from using this bot."
	msgJoinRequired   = "⚠️ ফাইল পেতে নিচের চ্যানেলগুলোতে জয়েন করুন:\n\n⚠️ Please join these channels to get the file:"
	msgFileNotFound   = "❌ ফাইল পাওয়া যায়নি বা লিংক ভুল।\n\n❌ File not found or invalid link."
	msgWelcome        = "🤖 স্বাগতম ফাইল শেয়ার বটে!\n\nAdmin রা ফাইল পাঠালে আমি শেয়ার লিংক তৈরি করি।\n\n🤖 Welcome to File Share Bot!\n\nAdmins can send files and I'll create share links."
	msgProcessing     = "⏳ ফাইল প্রসেসিং হচ্ছে...\n\n⏳ Processing file..."
	msgBatchStarted   = "📦 ব্যাচ মোড চালু হয়েছে! এখন একটার পর একটা ফাইল পাঠান। শেষ হলে /batch_end দিন।\n\n📦 Batch mode started! Send files one by one. Send /batch_end when done."
	msgNoBatch        = "📦 কোন ব্যাচ চালু নেই। শুরু করতে /batch_start দিন।\n\n📦 No batch is open. Send /batch_start to begin one."
	msgBatchEmpty     = "📦 ব্যাচে কোন ফাইল নেই!\n\n📦 No files in batch!"
	msgFileDelivered  = "📁 ফাইল পাঠানো হয়েছে!\n\n⚠️ এই ফাইল 5 মিনিট পর মুছে যাবে। দরকার হলে অন্য কোথাও ফরওয়ার্ড করে রাখুন।\n\n📁 File delivered!\n\n⚠️ This file will be deleted in 5 minutes. Forward it somewhere if needed."
	msgBatchDelivered = "📦 সব ফাইল পাঠানো হয়েছে!\n\n⚠️ এই ফাইলগুলো 5 মিনিট পর মুছে যাবে। দরকার হলে অন্য কোথাও ফরওয়ার্ড করে রাখুন।\n\n📦 All files delivered!\n\n⚠️ These files will be deleted in 5 minutes. Forward them somewhere if needed."
	msgInvalidUser    = "❌ User ID টি সঠিক নয়।\n\n❌ Invalid User ID."
	msgError          = "❌ কোন সমস্যা হয়েছে। আবার চেষ্টা করুন।\n\n❌ Something went wrong. Please try again."
	msgBanUsage       = "Usage: /ban <user_id>"
	msgUnbanUsage     = "Usage: /unban <user_id>"
	retryButtonText   = "🔄 Retry / পুনরায় চেষ্টা করুন"
)

func fileUploadedText(link string) string {
	return fmt.Sprintf("✅ ফাইল সফলভাবে আপলোড হয়েছে!\n\n🔗 শেয়ার লিংক: %s\n\n✅ File uploaded successfully!\n\n🔗 Share Link: %s", link, link)
}

func batchUploadedText(count int, link string) string {
	n := humanize.Comma(int64(count))
	return fmt.Sprintf("✅ %sটি ফাইল সফলভাবে আপলোড হয়েছে!\n\n🔗 শেয়ার লিংক: %s\n\n✅ %s files uploaded successfully!\n\n🔗 Share Link: %s", n, link, n, link)
}

func batchOpenText(count int) string {
	return fmt.Sprintf("📦 একটি ব্যাচ ইতিমধ্যে চালু আছে (%s ফাইল)। শেষ করতে /batch_end বা বাতিল করতে /batch_cancel দিন।\n\n"+
		"📦 A batch is already open (%s files). Send /batch_end to finish it or /batch_cancel to discard it.",
		humanize.Comma(int64(count)), humanize.Comma(int64(count)))
}

func addedToBatchText(count int) string {
	return fmt.Sprintf("✅ Added to batch (%s files)", humanize.Comma(int64(count)))
}

func batchCancelledText(count int) string {
	n := humanize.Comma(int64(count))
	return fmt.Sprintf("🗑 ব্যাচ বাতিল হয়েছে (%sটি ফাইল)।\n\n🗑 Batch discarded (%s files).", n, n)
}

func userBannedText(userID int64) string {
	return fmt.Sprintf("✅ User %d কে ban করা হয়েছে।\n\n✅ User %d has been banned.", userID, userID)
}

func userUnbannedText(userID int64) string {
	return fmt.Sprintf("✅ User %d এর ban উঠানো হয়েছে।\n\n✅ User %d has been unbanned.", userID, userID)
}

func statsText(s model.Stats) string {
	return fmt.Sprintf("📊 বট পরিসংখ্যান / Bot Statistics:\n\n"+
		"📁 মোট ফাইল / Total Files: %s\n"+
		"🚫 ব্যান ইউজার / Banned Users: %s\n"+
		"📦 ব্যাচ গ্রুপ / Batch Groups: %s\n",
		humanize.Comma(int64(s.Files)), humanize.Comma(int64(s.Banned)), humanize.Comma(int64(s.Batches)))
}
